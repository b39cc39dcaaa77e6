// Package handler serves the read-side HTTP API: document search, passage
// retrieval, and result-cache operations.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/groundbot/retrieval/internal/searcher"
	"github.com/groundbot/retrieval/internal/searcher/cache"
	"github.com/groundbot/retrieval/internal/searcher/ranker"
	"github.com/groundbot/retrieval/pkg/config"
	"github.com/groundbot/retrieval/pkg/logger"
	"github.com/groundbot/retrieval/pkg/metrics"
)

// Handler holds the dependencies of the search endpoints. Both results and
// metrics may be nil.
type Handler struct {
	retriever *searcher.Retriever
	results   *cache.ResultCache
	searchCfg config.SearchConfig
	cfg       config.RetrievalConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New builds a search handler.
func New(retriever *searcher.Retriever, results *cache.ResultCache, searchCfg config.SearchConfig, cfg config.RetrievalConfig, m *metrics.Metrics) *Handler {
	return &Handler{
		retriever: retriever,
		results:   results,
		searchCfg: searchCfg,
		cfg:       cfg,
		logger:    logger.WithComponent("search_handler"),
		metrics:   m,
	}
}

type searchResponse struct {
	Query   string             `json:"query"`
	Total   int                `json:"total"`
	Results []ranker.ScoredDoc `json:"results"`
}

type retrieveResponse struct {
	Query    string             `json:"query"`
	Total    int                `json:"total"`
	Passages []searcher.Passage `json:"passages"`
}

// Search handles GET /api/v1/search?q=...&limit=N.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := h.parseLimit(r.URL.Query().Get("limit"))

	results := h.retriever.Search(query, limit)
	if results == nil {
		results = []ranker.ScoredDoc{}
	}
	h.countQuery(query, len(results))
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Total:   len(results),
		Results: results,
	})
}

// Retrieve handles GET /api/v1/retrieve. An empty or unmatched query is a
// successful request with an empty passage list, not an error.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	k := h.parseLimit(q.Get("k"))

	var filters *searcher.Filters
	titleContains := q.Get("title_contains")
	requireTags := splitTags(q.Get("require_tags"))
	if titleContains != "" || len(requireTags) > 0 {
		filters = &searcher.Filters{
			TitleContains: titleContains,
			RequireTags:   requireTags,
		}
	}
	rerank := h.cfg.EnableRerank
	if v := q.Get("rerank"); v != "" {
		rerank = v == "true" || v == "1"
	}

	start := time.Now()
	var passages []searcher.Passage
	cacheStatus := "disabled"
	if h.results != nil {
		key := cache.Key(query, k, filters, rerank)
		var hit bool
		passages, hit = h.results.GetOrCompute(r.Context(), key, func() []searcher.Passage {
			return h.retriever.Retrieve(query, k, filters, rerank)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
		if h.metrics != nil {
			if hit {
				h.metrics.CacheHitsTotal.Inc()
			} else {
				h.metrics.CacheMissesTotal.Inc()
			}
		}
	} else {
		passages = h.retriever.Retrieve(query, k, filters, rerank)
	}
	if passages == nil {
		passages = []searcher.Passage{}
	}

	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		h.metrics.PassagesReturned.Observe(float64(len(passages)))
	}
	h.countQuery(query, len(passages))
	logger.FromContext(r.Context()).Debug("retrieve served",
		"passages", len(passages),
		"cache", cacheStatus,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, retrieveResponse{
		Query:    query,
		Total:    len(passages),
		Passages: passages,
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	st := h.results.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"hits":    st.Hits,
		"misses":  st.Misses,
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "invalidated": 0})
		return
	}
	n, err := h.results.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "invalidated": n})
}

func (h *Handler) parseLimit(raw string) int {
	limit := h.searchCfg.DefaultLimit
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > h.searchCfg.MaxResults {
		limit = h.searchCfg.MaxResults
	}
	return limit
}

func (h *Handler) countQuery(query string, n int) {
	if h.metrics == nil {
		return
	}
	switch {
	case strings.TrimSpace(query) == "":
		h.metrics.SearchQueriesTotal.WithLabelValues("empty_query").Inc()
	case n == 0:
		h.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		h.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
