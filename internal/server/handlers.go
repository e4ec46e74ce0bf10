package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/callvox/kbengine/internal/knowledge"
	"github.com/callvox/kbengine/internal/logging"
)

// tenantHeader carries the tenant identifier on every knowledge route.
const tenantHeader = "X-Tenant-ID"

// tenantID extracts the tenant from the request header. The second return
// is false when the header is missing, in which case a 400 has already been
// written.
func (s *Server) tenantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := strings.TrimSpace(r.Header.Get(tenantHeader))
	if tenant == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: tenantHeader + " header is required"})
		return "", false
	}
	return tenant, true
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError maps the knowledge error taxonomy onto HTTP statuses:
// ErrNotFound → 404, ErrInvalidInput → 400, ErrSearchFailed → 502, anything
// else → 500 with the detail kept out of the response body.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())

	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not found"})
	case errors.Is(err, knowledge.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, knowledge.ErrSearchFailed):
		log.Error("search failed", slog.Any("error", err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "search failed"})
	default:
		log.Error("internal error", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// handleCreateDocument handles POST /api/documents.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	var req knowledge.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	doc, err := s.engine.CreateDocument(r.Context(), tenant, req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// handleGetDocument handles GET /api/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	doc, err := s.engine.GetDocument(r.Context(), tenant, r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleUpdateDocument handles PUT /api/documents/{id}.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	var patch knowledge.UpdatePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	doc, err := s.engine.UpdateDocument(r.Context(), tenant, r.PathValue("id"), patch)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	if err := s.engine.DeleteDocument(r.Context(), tenant, r.PathValue("id")); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListDocuments handles GET /api/documents with query params
// page, pageSize, type, category, and tags (comma-separated).
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	pageSize := queryInt(q.Get("pageSize"), 20)

	var f knowledge.Filters
	if t := q.Get("type"); t != "" {
		docType, err := knowledge.ParseDocumentType(t)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		f.Type = docType
	}
	f.Category = q.Get("category")
	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}

	docs, total, err := s.engine.ListDocuments(r.Context(), tenant, page, pageSize, f)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*knowledge.Document{}
	}

	writeJSON(w, http.StatusOK, listDocumentsResponse{
		Documents: docs,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	})
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	var query knowledge.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	results, err := s.engine.Search(r.Context(), tenant, query)
	if err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		s.writeEngineError(w, r, err)
		return
	}
	s.metrics.searchRequestsTotal.WithLabelValues("ok").Inc()
	if results == nil {
		results = []knowledge.RankedResult{}
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// handleContext handles POST /api/context.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	text, err := s.engine.BuildContext(r.Context(), tenant, req.Query, req.Limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, contextResponse{Context: text})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	stats, err := s.engine.Stats(r.Context(), tenant)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryInt parses a positive integer query param, falling back on absence
// or garbage.
func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
