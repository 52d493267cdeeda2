package chi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/acharyye/graphRAG/internal/domain"
	logpkg "github.com/acharyye/graphRAG/internal/logger"
	ingestuc "github.com/acharyye/graphRAG/internal/usecase/ingest"
)

const maxMetricSamples = 1000

type ingestEntityRequest struct {
	TenantID    string           `json:"tenant_id"`
	Entity      domain.EntityRef `json:"entity"`
	Name        string           `json:"name"`
	Parent      domain.EntityRef `json:"parent,omitempty"`
	Channel     string           `json:"channel,omitempty"`
	Description string           `json:"description,omitempty"`
	Props       map[string]any   `json:"props,omitempty"`
}

type metricSampleRequest struct {
	Date        string  `json:"date"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
}

type ingestMetricsRequest struct {
	TenantID string                `json:"tenant_id"`
	Entity   domain.EntityRef      `json:"entity"`
	Samples  []metricSampleRequest `json:"samples"`
}

// handleIngestEntity handles PUT /api/v1/ingest/entities.
func (s *Server) handleIngestEntity(w http.ResponseWriter, r *http.Request) {
	var req ingestEntityRequest
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
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "name is required")
		return
	}

	ctx := logpkg.WithTenant(r.Context(), req.TenantID)
	err := s.ingest.UpsertEntity(ctx, req.TenantID, ingestuc.Entity{
		Ref:         req.Entity,
		Name:        req.Name,
		Parent:      req.Parent,
		Channel:     req.Channel,
		Description: req.Description,
		Props:       req.Props,
	})
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleIngestMetrics handles POST /api/v1/ingest/metrics.
func (s *Server) handleIngestMetrics(w http.ResponseWriter, r *http.Request) {
	var req ingestMetricsRequest
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
	if len(req.Samples) == 0 || len(req.Samples) > maxMetricSamples {
		writeError(w, http.StatusBadRequest, "validation_failed", "samples count must be between 1 and 1000")
		return
	}

	samples := make([]domain.MetricSample, len(req.Samples))
	for i, sr := range req.Samples {
		date, err := time.Parse(domain.DateDay, sr.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid sample date "+sr.Date)
			return
		}
		samples[i] = domain.MetricSample{
			Date:        date,
			Impressions: sr.Impressions,
			Clicks:      sr.Clicks,
			Conversions: sr.Conversions,
			Spend:       sr.Spend,
			Revenue:     sr.Revenue,
		}
	}

	ctx := logpkg.WithTenant(r.Context(), req.TenantID)
	if err := s.ingest.AddMetrics(ctx, req.TenantID, req.Entity, samples); err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
