package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
	"github.com/acharyye/graphRAG/internal/repository/audit"
	"github.com/acharyye/graphRAG/internal/repository/vectorindex"
	"github.com/acharyye/graphRAG/internal/usecase/confidence"
	healthuc "github.com/acharyye/graphRAG/internal/usecase/health"
	ingestuc "github.com/acharyye/graphRAG/internal/usecase/ingest"
	queryuc "github.com/acharyye/graphRAG/internal/usecase/query"
	"github.com/acharyye/graphRAG/internal/usecase/synthesis"
)

// --- Mocks ---

type stubGuard struct {
	err error
}

func (s *stubGuard) Scope(tenantID string, dates domain.DateRange) (domain.TenantContext, error) {
	if s.err != nil {
		return domain.TenantContext{}, s.err
	}
	return domain.NewTenantContext(tenantID, dates)
}

type stubParser struct{}

func (stubParser) Parse(_ string, requested domain.DateRange, _ []domain.EntityRef) domain.ParsedIntent {
	return domain.ParsedIntent{Dates: requested}
}

type stubGraphRet struct {
	items []domain.EvidenceItem
	err   error
}

func (s *stubGraphRet) Retrieve(_ context.Context, _ domain.TenantContext, _ domain.ParsedIntent) ([]domain.EvidenceItem, error) {
	return s.items, s.err
}

type stubVectorRet struct {
	items []domain.EvidenceItem
	err   error
}

func (s *stubVectorRet) Retrieve(_ context.Context, _ domain.TenantContext, _ string, _ domain.ParsedIntent) ([]domain.EvidenceItem, error) {
	return s.items, s.err
}

type stubFuser struct{}

func (stubFuser) Fuse(graphItems, vectorItems []domain.EvidenceItem) domain.EvidenceSet {
	return append(append(domain.EvidenceSet{}, graphItems...), vectorItems...)
}

type stubSynth struct {
	result synthesis.Result
}

func (s *stubSynth) Synthesize(_ context.Context, _ string, _ domain.EvidenceSet, _ []domain.ConversationTurn) (synthesis.Result, error) {
	return s.result, nil
}

func (s *stubSynth) Recommend(_ context.Context, _ domain.EvidenceSet) ([]string, error) {
	return nil, nil
}

type stubScorer struct {
	label  domain.Confidence
	reason string
}

func (s *stubScorer) Score(_ confidence.Input) (domain.Confidence, string) {
	return s.label, s.reason
}

type stubMemory struct {
	clearedID string
}

func (s *stubMemory) Recent(_ context.Context, _, _ string) ([]domain.ConversationTurn, []domain.EntityRef, error) {
	return nil, nil, nil
}

func (s *stubMemory) Append(_ context.Context, _, _, _, _ string, _ []domain.EntityRef) error {
	return nil
}

func (s *stubMemory) Clear(_ context.Context, _, sessionID string) error {
	s.clearedID = sessionID
	return nil
}

type stubAuditor struct{}

func (stubAuditor) Write(_ context.Context, _ audit.Record) error { return nil }

type stubDrill struct {
	node *graph.Node
}

func (s *stubDrill) Entity(_ string, _ domain.EntityRef) (*graph.Node, error) {
	if s.node == nil {
		return nil, domain.ErrNotFound
	}
	return s.node, nil
}

func (s *stubDrill) Children(_ string, _ domain.EntityRef) ([]*graph.Node, error) {
	return nil, nil
}

func (s *stubDrill) Metrics(_ string, _ domain.EntityRef, _ domain.DateRange) ([]domain.MetricSample, error) {
	return nil, nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

type stubWriter struct{}

func (stubWriter) UpsertEntity(_ string, _ domain.EntityRef, _ string, _ map[string]any) error {
	return nil
}
func (stubWriter) Link(_, _ domain.EntityRef, _ graph.EdgeType) error { return nil }
func (stubWriter) AddMetricSample(_ string, _ domain.EntityRef, _ domain.MetricSample) error {
	return nil
}
func (stubWriter) ClientExists(_ string) (bool, error) { return true, nil }

type stubDocs struct{}

func (stubDocs) Upsert(_ context.Context, _ vectorindex.Document) error       { return nil }
func (stubDocs) Delete(_ context.Context, _ string, _ domain.EntityRef) error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1}}, nil
}

// --- Helpers ---

type serverFixture struct {
	guard   *stubGuard
	graph   *stubGraphRet
	vector  *stubVectorRet
	synth   *stubSynth
	scorer  *stubScorer
	memory  *stubMemory
	drill   *stubDrill
	pinger  *stubPinger
	handler http.Handler
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &serverFixture{
		guard:  &stubGuard{},
		graph:  &stubGraphRet{},
		vector: &stubVectorRet{},
		synth:  &stubSynth{},
		scorer: &stubScorer{label: domain.ConfidenceMedium},
		memory: &stubMemory{},
		drill:  &stubDrill{},
		pinger: &stubPinger{},
	}

	querySvc := queryuc.New(
		f.guard, stubParser{}, f.graph, f.vector, stubFuser{},
		f.synth, f.scorer, f.memory, stubAuditor{}, f.drill,
		queryuc.Params{RetrieverTimeout: time.Second}, logger,
	)
	ingestSvc := ingestuc.New(stubWriter{}, stubDocs{}, stubEmbedder{}, logger)
	healthSvc := healthuc.New(f.pinger, nil, logger)

	server := NewServer(querySvc, ingestSvc, healthSvc, logger)
	router := chirouter.NewRouter()
	server.RegisterRoutes(router)
	f.handler = router
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeQueryResponse(t *testing.T, rec *httptest.ResponseRecorder) queryResponse {
	t.Helper()
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestHandleQuery_Answered(t *testing.T) {
	f := newServerFixture(t)
	f.graph.items = []domain.EvidenceItem{{
		Source: domain.SourceGraph,
		Entity: domain.EntityRef{ID: "c1", Type: domain.EntityCampaign},
		Score:  0.9,
	}}
	f.synth.result = synthesis.Result{Answer: "campaigns are fine"}

	rec := f.do(t, http.MethodPost, "/api/v1/query", queryRequest{
		TenantID: "t1",
		Question: "how are my campaigns?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeQueryResponse(t, rec)
	if resp.Answer != "campaigns are fine" || resp.Confidence != domain.ConfidenceMedium {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.QueryID == "" {
		t.Error("expected a query id")
	}
}

func TestHandleQuery_RefusedIsStill200(t *testing.T) {
	f := newServerFixture(t)
	f.graph.items = []domain.EvidenceItem{{
		Source: domain.SourceGraph,
		Entity: domain.EntityRef{ID: "c1", Type: domain.EntityCampaign},
	}}
	f.synth.result = synthesis.Result{Insufficient: true}
	f.scorer.label = domain.ConfidenceRefused
	f.scorer.reason = "the available evidence does not answer this question"

	rec := f.do(t, http.MethodPost, "/api/v1/query", queryRequest{
		TenantID: "t1",
		Question: "how are my campaigns?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("a refusal is a successful query, got %d", rec.Code)
	}
	resp := decodeQueryResponse(t, rec)
	if resp.Confidence != domain.ConfidenceRefused {
		t.Errorf("expected REFUSED, got %s", resp.Confidence)
	}
	if resp.RefusalReason == "" {
		t.Error("expected a refusal reason")
	}
	if resp.Answer != "" {
		t.Errorf("refused response carries no answer, got %q", resp.Answer)
	}
	// Evidence stays visible so the caller sees what was considered.
	if len(resp.Evidence) != 1 {
		t.Errorf("expected evidence carried, got %d items", len(resp.Evidence))
	}
}

func TestHandleQuery_ValidationFailures(t *testing.T) {
	f := newServerFixture(t)

	cases := []struct {
		name string
		req  queryRequest
	}{
		{"missing tenant", queryRequest{Question: "q"}},
		{"missing question", queryRequest{TenantID: "t1"}},
		{"partial dates", queryRequest{TenantID: "t1", Question: "q", StartDate: "2025-06-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/query", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleQuery_InvalidTenantIs403(t *testing.T) {
	f := newServerFixture(t)
	f.guard.err = domain.ErrInvalidTenant

	rec := f.do(t, http.MethodPost, "/api/v1/query", queryRequest{
		TenantID: "ghost",
		Question: "q",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != "invalid_tenant" {
		t.Errorf("unexpected error code %q", resp.Code)
	}
}

func TestHandleQuery_PipelineFailureIsGeneric500(t *testing.T) {
	f := newServerFixture(t)
	f.graph.err = errors.New("graph store down")
	f.vector.err = errors.New("index down")

	rec := f.do(t, http.MethodPost, "/api/v1/query", queryRequest{
		TenantID: "t1",
		Question: "q",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	resp := decodeErrorResponse(t, rec)
	if resp.Code != "query_failed" {
		t.Errorf("unexpected error code %q", resp.Code)
	}
	// The response must not leak which component broke.
	if resp.Message != "The query could not be completed. Please try again." {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestHandleDrillDown_RoleForbidden(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/drill-down", drillDownRequest{
		TenantID: "t1",
		Role:     "viewer",
		Entity:   domain.EntityRef{ID: "c1", Type: domain.EntityCampaign},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != "drill_down_forbidden" {
		t.Errorf("unexpected error code %q", resp.Code)
	}
}

func TestHandleDrillDown_Analyst(t *testing.T) {
	f := newServerFixture(t)
	f.drill.node = &graph.Node{
		ID:         "campaign:c1",
		Label:      domain.EntityCampaign,
		TenantID:   "t1",
		Properties: map[string]any{"name": "Summer Sale"},
	}

	rec := f.do(t, http.MethodPost, "/api/v1/drill-down", drillDownRequest{
		TenantID: "t1",
		Role:     "analyst",
		Entity:   domain.EntityRef{ID: "c1", Type: domain.EntityCampaign},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var dd domain.DrillDown
	if err := json.Unmarshal(rec.Body.Bytes(), &dd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dd.Name != "Summer Sale" {
		t.Errorf("unexpected drill-down: %+v", dd)
	}
}

func TestHandleClearSession(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/v1/sessions/s1?tenant_id=t1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if f.memory.clearedID != "s1" {
		t.Errorf("expected session s1 cleared, got %q", f.memory.clearedID)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/sessions/s1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tenant_id, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	f.pinger.err = errors.New("connection refused")
	rec = f.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the database is down, got %d", rec.Code)
	}
}

func TestHandleIngestEntity(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/ingest/entities", ingestEntityRequest{
		TenantID: "t1",
		Entity:   domain.EntityRef{ID: "c1", Type: domain.EntityCampaign},
		Name:     "Summer Sale",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPut, "/api/v1/ingest/entities", ingestEntityRequest{
		TenantID: "t1",
		Entity:   domain.EntityRef{ID: "c1", Type: domain.EntityCampaign},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a name, got %d", rec.Code)
	}
}

func TestHandleIngestMetrics(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/ingest/metrics", ingestMetricsRequest{
		TenantID: "t1",
		Entity:   domain.EntityRef{ID: "a1", Type: domain.EntityAdSet},
		Samples:  []metricSampleRequest{{Date: "2025-06-01", Clicks: 10}},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/ingest/metrics", ingestMetricsRequest{
		TenantID: "t1",
		Entity:   domain.EntityRef{ID: "a1", Type: domain.EntityAdSet},
		Samples:  []metricSampleRequest{{Date: "June 1st"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed date, got %d", rec.Code)
	}
}
