package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tidwall/gjson"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/security"
)

type customOptions struct {
	Method         string            `mapstructure:"method"`
	Headers        map[string]string `mapstructure:"headers"`
	Body           string            `mapstructure:"body"`
	Transform      string            `mapstructure:"transform"`
	ResultsPath    string            `mapstructure:"results_path"`
	TitleField     string            `mapstructure:"title_field"`
	LinkField      string            `mapstructure:"link_field"`
	SnippetField   string            `mapstructure:"snippet_field"`
	ThumbnailField string            `mapstructure:"thumbnail_field"`
}

// CustomProtocol calls an arbitrary JSON HTTP API described entirely by config.
// Results are mapped either by an expr program or by gjson field paths.
type CustomProtocol struct {
	name      string
	weight    float64
	urlTmpl   string
	opts      customOptions
	transform *vm.Program
	client    *http.Client
}

func NewCustomProtocol(cfg config.SourceConfig, client *http.Client) (Protocol, error) {
	p := &CustomProtocol{
		name:    cfg.Name,
		weight:  cfg.EffectiveWeight(),
		urlTmpl: cfg.APIURL,
		client:  client,
	}
	if err := decodeOptions(cfg.Options, &p.opts); err != nil {
		return nil, err
	}
	p.opts.Method = strings.ToUpper(p.opts.Method)
	if p.opts.Method == "" {
		p.opts.Method = http.MethodGet
	}
	if p.opts.Method != http.MethodGet && p.opts.Method != http.MethodPost {
		return nil, fmt.Errorf("custom source %s: unsupported method %s", cfg.ID, p.opts.Method)
	}
	if p.opts.TitleField == "" {
		p.opts.TitleField = "title"
	}
	if p.opts.LinkField == "" {
		p.opts.LinkField = "url"
	}
	if p.opts.SnippetField == "" {
		p.opts.SnippetField = "snippet"
	}
	if p.opts.Transform != "" {
		program, err := expr.Compile(p.opts.Transform)
		if err != nil {
			return nil, fmt.Errorf("custom source %s: invalid transform: %w", cfg.ID, err)
		}
		p.transform = program
	}
	return p, nil
}

func transformEnv(data any, source string, weight float64) map[string]any {
	return map[string]any{
		"data":   data,
		"source": source,
		"weight": weight,
	}
}

func (p *CustomProtocol) buildURL(q Query) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(q.Text),
		"{lang}", q.Lang,
		"{limit}", strconv.Itoa(q.Limit),
	)
	return r.Replace(p.urlTmpl)
}

func (p *CustomProtocol) buildBody(q Query) io.Reader {
	if p.opts.Method != http.MethodPost || p.opts.Body == "" {
		return nil
	}
	// The template is JSON, so the query goes in as escaped string content.
	quoted, _ := json.Marshal(q.Text)
	r := strings.NewReplacer(
		"{query}", string(quoted[1:len(quoted)-1]),
		"{lang}", q.Lang,
		"{limit}", strconv.Itoa(q.Limit),
	)
	return strings.NewReader(r.Replace(p.opts.Body))
}

func (p *CustomProtocol) WebSearch(ctx context.Context, q Query) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, p.opts.Method, p.buildURL(q), p.buildBody(q))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range p.opts.Headers {
		req.Header.Set(k, v)
	}
	if p.opts.Method == http.MethodPost && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	body, err := doRequest(p.client, req)
	if err != nil {
		return nil, fmt.Errorf("custom source: %w", err)
	}
	if p.transform != nil {
		return p.runTransform(body)
	}
	return p.mapFields(body)
}

func (p *CustomProtocol) runTransform(body []byte) ([]Result, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	out, err := expr.Run(p.transform, transformEnv(data, p.name, p.weight))
	if err != nil {
		return nil, fmt.Errorf("transform failed: %w", err)
	}
	items, ok := out.([]any)
	if !ok {
		return nil, fmt.Errorf("transform must return a list, got %T", out)
	}

	results := make([]Result, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		link := stringField(m, "link")
		snippet := stringField(m, "snippet")
		results = append(results, Result{
			Title:         stringField(m, "title"),
			Link:          link,
			DisplayHost:   security.DisplayHost(link),
			SnippetPlain:  PlainSnippet(snippet),
			SnippetMarked: MarkedSnippet(snippet),
			ThumbnailURL:  stringField(m, "thumbnail"),
		})
	}
	return results, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (p *CustomProtocol) mapFields(body []byte) ([]Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse response: invalid json")
	}
	list := gjson.ParseBytes(body)
	if p.opts.ResultsPath != "" {
		list = list.Get(p.opts.ResultsPath)
	}
	if !list.IsArray() {
		return nil, nil
	}

	var results []Result
	list.ForEach(func(_, item gjson.Result) bool {
		link := item.Get(p.opts.LinkField).String()
		snippet := item.Get(p.opts.SnippetField).String()
		r := Result{
			Title:         item.Get(p.opts.TitleField).String(),
			Link:          link,
			DisplayHost:   security.DisplayHost(link),
			SnippetPlain:  PlainSnippet(snippet),
			SnippetMarked: MarkedSnippet(snippet),
		}
		if p.opts.ThumbnailField != "" {
			r.ThumbnailURL = item.Get(p.opts.ThumbnailField).String()
		}
		results = append(results, r)
		return true
	})
	return results, nil
}
