// Package chi is the HTTP transport of the query engine.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	logpkg "github.com/acharyye/graphRAG/internal/logger"
	healthuc "github.com/acharyye/graphRAG/internal/usecase/health"
	ingestuc "github.com/acharyye/graphRAG/internal/usecase/ingest"
	queryuc "github.com/acharyye/graphRAG/internal/usecase/query"
)

const maxQuestionBytes = 4096

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	queries       *queryuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(queries *queryuc.Service, ingest *ingestuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		queries: queries,
		ingest:  ingest,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidTenant, http.StatusForbidden, "invalid_tenant"),
		sentinelHandler(domain.ErrTenantMismatch, http.StatusForbidden, "tenant_mismatch"),
		sentinelHandler(domain.ErrDrillDownForbidden, http.StatusForbidden, "drill_down_forbidden"),
		sentinelHandler(domain.ErrInvalidDateRange, http.StatusBadRequest, "invalid_date_range"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		stepErrorHandler,
	}
	return s
}

// RegisterRoutes mounts all API routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/drill-down", s.handleDrillDown)
	r.Delete("/api/v1/sessions/{sessionID}", s.handleClearSession)
	r.Put("/api/v1/ingest/entities", s.handleIngestEntity)
	r.Post("/api/v1/ingest/metrics", s.handleIngestMetrics)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleQuery handles POST /api/v1/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "tenant_id is required")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}
	if len(req.Question) > maxQuestionBytes {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is too long")
		return
	}

	ctx := logpkg.WithTenant(r.Context(), req.TenantID)

	dates, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	result, err := s.queries.Execute(ctx, queryuc.Request{
		TenantID:  req.TenantID,
		Question:  req.Question,
		SessionID: req.SessionID,
		Dates:     dates,
		Role:      req.Role,
	})
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultToResponse(result))
}

// handleDrillDown handles POST /api/v1/drill-down.
func (s *Server) handleDrillDown(w http.ResponseWriter, r *http.Request) {
	var req drillDownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "tenant_id is required")
		return
	}
	if req.Entity.ID == "" || req.Entity.Type == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "entity id and type are required")
		return
	}

	ctx := logpkg.WithTenant(r.Context(), req.TenantID)

	dates, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	dd, err := s.queries.DrillDown(ctx, queryuc.DrillDownRequest{
		TenantID: req.TenantID,
		Role:     req.Role,
		Entity:   req.Entity,
		Dates:    dates,
	})
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, dd)
}

// handleClearSession handles DELETE /api/v1/sessions/{sessionID}.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "tenant_id is required")
		return
	}

	ctx := logpkg.WithTenant(r.Context(), tenantID)
	if err := s.queries.ClearSession(ctx, tenantID, sessionID); err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if !status.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidTenant,
		domain.ErrTenantMismatch,
		domain.ErrInvalidDateRange,
		domain.ErrNotFound,
		domain.ErrDrillDownForbidden,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// stepErrorHandler maps pipeline failures to 500 without leaking which
// component broke. The step still lands in the log, not the response.
func stepErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var stepErr *domain.StepError
	if !errors.As(err, &stepErr) {
		return false
	}
	writeError(w, http.StatusInternalServerError, "query_failed",
		"The query could not be completed. Please try again.")
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	// The request-scoped logger carries the request id and tenant id, so
	// error lines correlate with the wide event for the same request.
	logpkg.FromContext(ctx).Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func parseDates(start, end string) (domain.DateRange, error) {
	if start == "" && end == "" {
		return domain.DateRange{}, nil
	}
	if start == "" || end == "" {
		return domain.DateRange{}, fmt.Errorf(
			"%w: start_date and end_date must be provided together", domain.ErrInvalidDateRange)
	}
	return domain.ParseDateRange(start, end)
}
