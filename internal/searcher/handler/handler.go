// Package handler exposes the ranking executor, the result cache and the
// cache administration endpoints over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/middleware"
)

var errCacheDisabled = apperrors.New(apperrors.ErrCacheDisabled, http.StatusServiceUnavailable, "caching is disabled")

type SearchExecutor interface {
	Execute(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	collector    *analytics.Collector
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. queryCache and collector may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		collector:    collector,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=<query>&limit=<n>.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeError(w, apperrors.Invalidf("query parameter 'q' is required"))
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, cacheHit, err := h.run(ctx, query, limit)
	latencyMs := time.Since(start).Milliseconds()
	if err != nil {
		h.logger.ErrorContext(ctx, "search failed",
			"query", query,
			"status", apperrors.HTTPStatusCode(err),
			"error", err,
		)
		h.track(r, analytics.SearchEvent{
			Type:      analytics.EventError,
			Query:     query,
			LatencyMs: latencyMs,
			Error:     err.Error(),
		})
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "search completed",
		"query", query,
		"total_docs", result.TotalDocs,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.track(r, searchEvent(result, cacheHit, latencyMs))

	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) run(ctx context.Context, query string, limit int) (*executor.SearchResult, bool, error) {
	if h.cache == nil {
		result, err := h.executor.Execute(ctx, query, limit)
		return result, false, err
	}
	return h.cache.GetOrCompute(ctx, query, limit, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, query, limit)
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats(r.Context())
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"keys":     stats.Keys,
		"breaker":  stats.Breaker,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, errCacheDisabled)
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(err, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// parseLimit applies the default when raw is empty and clamps to
// maxResults.
func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, apperrors.Invalidf("limit must be a positive integer, got %q", raw)
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, nil
}

func (h *Handler) track(r *http.Request, event analytics.SearchEvent) {
	if h.collector == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(r)
	h.collector.Track(event)
}

func searchEvent(result *executor.SearchResult, cacheHit bool, latencyMs int64) analytics.SearchEvent {
	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Query:     result.Query,
		Terms:     result.Terms,
		TotalDocs: result.TotalDocs,
		Returned:  len(result.Results),
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
	}
	if cacheHit {
		event.Type = analytics.EventCacheHit
	}
	if len(result.Results) > 0 {
		event.TopDocID = result.Results[0].DocID
		event.TopScore = result.Results[0].Score
	}
	if event.TopScore == 0 {
		event.Type = analytics.EventZeroScore
	}
	return event
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{
		"error": apperrors.PublicMessage(err, "search failed"),
	})
}
