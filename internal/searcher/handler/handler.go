// Package handler exposes the lookup engine and the suggestion formatter
// over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/lookup"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/message"
	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/metrics"
)

// FindResponse is the body of GET /api/v1/find.
type FindResponse struct {
	Exe       string          `json:"exe"`
	Mode      matcher.Mode    `json:"mode"`
	Results   []lookup.Result `json:"results"`
	Truncated bool            `json:"truncated,omitempty"`
}

// MessageResponse is the body of GET /api/v1/message.
type MessageResponse struct {
	Exe     string `json:"exe"`
	Message string `json:"message"`
	Cached  bool   `json:"cached"`
}

type Handler struct {
	engine     *lookup.Engine
	formatter  *message.Formatter
	results    *cache.ResultCache
	metrics    *metrics.Metrics
	searchPath []string
	maxResults int
	logger     *slog.Logger
}

// New builds a Handler. results and m may be nil to run without the result
// cache or without Prometheus metrics.
func New(engine *lookup.Engine, results *cache.ResultCache, m *metrics.Metrics, searchPath []string, maxResults int) *Handler {
	return &Handler{
		engine:     engine,
		formatter:  message.NewFormatter(engine),
		results:    results,
		metrics:    m,
		searchPath: searchPath,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "suggest-handler"),
	}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/find", h.Find)
	mux.HandleFunc("GET /api/v1/message", h.Message)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/clear", h.CacheClear)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	exe := r.URL.Query().Get("exe")
	if exe == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'exe' is required")
		return
	}
	mode := matcher.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = matcher.ModeExact
	}

	results, err := h.engine.Find(ctx, mode, exe, h.searchPath)
	h.observe(string(mode), start, len(results), err)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("lookup failed", "exe", exe, "mode", mode, "error", err)
		h.writeError(w, status, errorText(status, err))
		return
	}

	resp := FindResponse{Exe: exe, Mode: mode, Results: results}
	if h.maxResults > 0 && len(resp.Results) > h.maxResults {
		resp.Results = resp.Results[:h.maxResults]
		resp.Truncated = true
	}
	log.Info("lookup completed",
		"exe", exe,
		"mode", mode,
		"results", len(results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	exe := r.URL.Query().Get("exe")
	if exe == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'exe' is required")
		return
	}

	var msg string
	var err error
	cached := false
	if h.results != nil {
		// Concurrent callers share this computation.
		shared := context.WithoutCancel(ctx)
		msg, cached, err = h.results.GetOrCompute(ctx, exe, h.searchPath, func() (string, error) {
			return h.formatter.Message(shared, exe, h.searchPath)
		})
	} else {
		msg, err = h.formatter.Message(ctx, exe, h.searchPath)
	}
	h.observe("message", start, 1, err)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("message failed", "exe", exe, "error", err)
		h.writeError(w, status, errorText(status, err))
		return
	}
	if h.metrics != nil {
		if cached {
			h.metrics.MessageCacheHits.Inc()
		} else {
			h.metrics.MessageCacheMisses.Inc()
		}
	}

	log.Info("message served",
		"exe", exe,
		"cache_hit", cached,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, MessageResponse{Exe: exe, Message: msg, Cached: cached})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses, loads := h.engine.Cache().Stats()
	stats := map[string]any{
		"map_files": map[string]any{
			"cached": h.engine.Cache().Len(),
			"hits":   hits,
			"misses": misses,
			"loads":  loads,
		},
	}
	if h.results == nil {
		stats["results"] = map[string]string{"status": "disabled"}
	} else {
		rh, rm := h.results.Stats()
		total := rh + rm
		var hitRate float64
		if total > 0 {
			hitRate = float64(rh) / float64(total) * 100
		}
		stats["results"] = map[string]any{
			"hits":     rh,
			"misses":   rm,
			"total":    total,
			"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		}
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// CacheClear drops every parsed map file and every cached message.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.Clear(r.Context()); err != nil {
		h.logger.Error("cache clear failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Clear empties the map file cache and invalidates the result cache.
func (h *Handler) Clear(ctx context.Context) error {
	h.engine.Cache().Clear()
	if h.results == nil {
		return nil
	}
	return h.results.Invalidate(ctx)
}

func (h *Handler) observe(mode string, start time.Time, n int, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "found"
	switch {
	case err != nil:
		outcome = "error"
	case n == 0:
		outcome = "empty"
	}
	h.metrics.LookupsTotal.WithLabelValues(mode, outcome).Inc()
	h.metrics.LookupLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err == nil {
		h.metrics.LookupResultsCount.WithLabelValues(mode).Observe(float64(n))
	}
}

// errorText hides internal details behind a generic message for 5xx.
func errorText(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return "lookup failed"
	}
	return err.Error()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
