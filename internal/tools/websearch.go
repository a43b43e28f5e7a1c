package tools

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/quota"
	"github.com/kayz/kidsearch/internal/render"
	"github.com/kayz/kidsearch/internal/search"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Searcher is satisfied by *search.Engine.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.AggregatedResponse, error)
}

// QuotaReporter is satisfied by *quota.Tracker.
type QuotaReporter interface {
	Usage() quota.Usage
}

// Toolset exposes the aggregated search as MCP tools.
type Toolset struct {
	engine      Searcher
	quota       QuotaReporter
	defaultLang string
}

// New returns the tool handlers. quota may be nil.
func New(engine Searcher, quota QuotaReporter, defaultLang string) *Toolset {
	if defaultLang == "" {
		defaultLang = "fr"
	}
	return &Toolset{engine: engine, quota: quota, defaultLang: defaultLang}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(ts *Toolset, version string) *server.MCPServer {
	s := server.NewMCPServer("kidsearch", version, server.WithToolCapabilities(false))
	ts.Register(s)
	return s
}

func (t *Toolset) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("web_search",
		mcp.WithDescription("Search the web with results filtered and ranked for children"),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to search for")),
		mcp.WithNumber("page", mcp.Description("Result page, starting at 1")),
		mcp.WithString("lang", mcp.Description("Language code such as fr or en")),
		mcp.WithString("sort", mcp.Description("Empty for relevance, or date")),
		mcp.WithString("format", mcp.Description("text (default) or json")),
	), t.WebSearch)

	s.AddTool(mcp.NewTool("image_search",
		mcp.WithDescription("Search for child-safe images"),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to search for")),
		mcp.WithNumber("page", mcp.Description("Result page, starting at 1")),
		mcp.WithString("lang", mcp.Description("Language code such as fr or en")),
		mcp.WithString("format", mcp.Description("text (default) or json")),
	), t.ImageSearch)

	s.AddTool(mcp.NewTool("quota_status",
		mcp.WithDescription("Show how many metered web searches are left today"),
	), t.QuotaStatus)
}

func (t *Toolset) WebSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.run(ctx, req, search.KindWeb)
}

func (t *Toolset) ImageSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.run(ctx, req, search.KindImages)
}

func (t *Toolset) run(ctx context.Context, req mcp.CallToolRequest, kind search.Kind) (*mcp.CallToolResult, error) {
	query, ok := req.Params.Arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	page := 1
	if p, ok := req.Params.Arguments["page"].(float64); ok && p >= 1 {
		page = int(p)
	}
	lang, _ := req.Params.Arguments["lang"].(string)
	sort, _ := req.Params.Arguments["sort"].(string)
	format, _ := req.Params.Arguments["format"].(string)

	resp, err := t.engine.Search(ctx, search.Request{
		Query: query,
		Kind:  kind,
		Page:  page,
		Sort:  sort,
		Lang:  lang,
	})
	if lang == "" {
		lang = t.defaultLang
	}
	if err != nil {
		logger.Warn("[MCP] %s %q failed: %v", kind, query, err)
		return mcp.NewToolResultError(render.FriendlyError(err, lang)), nil
	}

	if format == "json" {
		data, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
	return mcp.NewToolResultText(render.Text(resp, lang)), nil
}

func (t *Toolset) QuotaStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.quota == nil {
		return mcp.NewToolResultText("The metered web search is not configured; only secondary sources are used."), nil
	}
	u := t.quota.Usage()
	return mcp.NewToolResultText(fmt.Sprintf("%d of %d searches used today, %d remaining (day %s)",
		u.Used, u.Limit, u.Remaining, u.ResetDate)), nil
}
