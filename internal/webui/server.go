package webui

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kayz/kidsearch/internal/cache"
	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/quota"
	"github.com/kayz/kidsearch/internal/render"
	"github.com/kayz/kidsearch/internal/search"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SearchService is the part of *search.Engine the server needs.
type SearchService interface {
	Search(ctx context.Context, req search.Request) (*search.AggregatedResponse, error)
	Registry() *search.Registry
	ClearCaches()
	CacheStats() []cache.Stats
}

// QuotaReporter is satisfied by *quota.Tracker.
type QuotaReporter interface {
	Usage() quota.Usage
}

type Server struct {
	engine      SearchService
	quota       QuotaReporter
	jobs        JobController
	defaultLang string
	startedAt   time.Time
	upgrader    websocket.Upgrader
}

// NewServer builds the HTTP front end. quota may be nil when the primary
// source is not configured.
func NewServer(engine SearchService, quota QuotaReporter, defaultLang string) *Server {
	if defaultLang == "" {
		defaultLang = "fr"
	}
	return &Server{
		engine:      engine,
		quota:       quota,
		defaultLang: defaultLang,
		startedAt:   time.Now().UTC(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/quota", s.handleQuota)
	mux.HandleFunc("/api/sources", s.handleSources)
	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobAction)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(defaultIndexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
		"sources":    len(s.engine.Registry().Sources()),
		"caches":     s.engine.CacheStats(),
	})
}

type searchError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	requestID := uuid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	q := r.URL.Query()
	req := search.Request{
		Query: q.Get("q"),
		Kind:  search.ParseKind(q.Get("type")),
		Page:  1,
		Sort:  q.Get("sort"),
		Lang:  q.Get("lang"),
	}
	if p := q.Get("p"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			writeJSON(w, http.StatusBadRequest, searchError{Error: "invalid page", Message: render.MessagesFor(s.lang(req.Lang)).LastPage, RequestID: requestID})
			return
		}
		req.Page = page
	}

	start := time.Now()
	resp, err := s.engine.Search(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		logger.Warn("[Serve] search %s q=%q failed with %d: %v", requestID, req.Query, status, err)
		writeJSON(w, status, searchError{Error: errorCode(err), Message: render.FriendlyError(err, s.lang(req.Lang)), RequestID: requestID})
		return
	}
	logger.Debug("[Serve] search %s q=%q kind=%s page=%d items=%d in %v", requestID, req.Query, req.Kind, req.Page, len(resp.Items), time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuota(w http.ResponseWriter, _ *http.Request) {
	if s.quota == nil {
		writeJSON(w, http.StatusOK, map[string]any{"configured": false})
		return
	}
	u := s.quota.Usage()
	writeJSON(w, http.StatusOK, map[string]any{
		"configured": true,
		"used":       u.Used,
		"limit":      u.Limit,
		"remaining":  u.Remaining,
		"reset_date": u.ResetDate,
	})
}

type sourceInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Weight         float64 `json:"weight"`
	Enabled        bool    `json:"enabled"`
	SupportsWeb    bool    `json:"supports_web"`
	SupportsImages bool    `json:"supports_images"`
	Breaker        string  `json:"breaker"`
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	sources := s.engine.Registry().Sources()
	out := make([]sourceInfo, 0, len(sources))
	for _, src := range sources {
		out = append(out, sourceInfo{
			ID:             src.ID(),
			Name:           src.Name(),
			Type:           src.Type(),
			Weight:         src.Weight(),
			Enabled:        src.Enabled(),
			SupportsWeb:    src.SupportsWeb(),
			SupportsImages: src.SupportsImages(),
			Breaker:        src.BreakerState(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.engine.ClearCaches()
	logger.Info("[Serve] result caches cleared")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "caches": s.engine.CacheStats()})
}

func (s *Server) lang(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return s.defaultLang
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, search.ErrPageOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, search.ErrPageOutOfRange):
		return "page_out_of_range"
	case errors.Is(err, search.ErrAllSourcesFailed):
		return "all_sources_failed"
	}
	return "search_failed"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
