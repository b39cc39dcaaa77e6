// Package handler serves the write-side HTTP API: document ingest,
// removal, and index persistence.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/groundbot/retrieval/internal/indexer"
	"github.com/groundbot/retrieval/internal/indexer/index"
	"github.com/groundbot/retrieval/internal/ingestion"
	"github.com/groundbot/retrieval/internal/ingestion/validator"
	"github.com/groundbot/retrieval/internal/searcher/cache"
	apperrors "github.com/groundbot/retrieval/pkg/errors"
	"github.com/groundbot/retrieval/pkg/logger"
	"github.com/groundbot/retrieval/pkg/metrics"
)

// Handler holds the dependencies of the ingestion endpoints. Both results
// and metrics may be nil.
type Handler struct {
	engine  *indexer.Engine
	results *cache.ResultCache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds an ingestion handler.
func New(engine *indexer.Engine, results *cache.ResultCache, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:  engine,
		results: results,
		logger:  logger.WithComponent("ingestion_handler"),
		metrics: m,
	}
}

// Ingest handles POST /api/v1/documents.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(req.DocID, req.Text, req.Title, req.Tags); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	docID := h.engine.IngestText(req.DocID, req.Text, index.DocumentMeta{
		Source: req.Source,
		Title:  req.Title,
		Tags:   req.Tags,
	})
	if h.metrics != nil {
		h.metrics.DocsIndexedTotal.Inc()
	}
	h.invalidateResults(r.Context())
	logger.FromContext(r.Context()).Info("document ingested", "doc_id", docID, "chars", len(req.Text))

	writeJSON(w, http.StatusAccepted, ingestion.IngestResponse{
		DocID:  docID,
		Status: "indexed",
	})
}

// Remove handles DELETE /api/v1/documents/{id}. Removing an unknown id
// still returns 204 since the end state is the same.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}
	h.engine.Remove(docID)
	if h.metrics != nil {
		h.metrics.DocsRemovedTotal.Inc()
	}
	h.invalidateResults(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Save handles POST /api/v1/index/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Save(); err != nil {
		if h.metrics != nil {
			h.metrics.IndexSavesTotal.WithLabelValues("error").Inc()
		}
		h.logger.Error("index save failed", "error", err)
		writeError(w, apperrors.HTTPStatusCode(err), "failed to save index")
		return
	}
	if h.metrics != nil {
		h.metrics.IndexSavesTotal.WithLabelValues("ok").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "saved",
		"docs":   h.engine.DocCount(),
	})
}

// invalidateResults clears the retrieve-result cache after a mutation.
// Best effort: a failed invalidation is logged and the entries expire by
// TTL anyway.
func (h *Handler) invalidateResults(ctx context.Context) {
	if h.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := h.results.Invalidate(ctx); err != nil {
		h.logger.Warn("result cache invalidation failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
