package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/repository/audit"
	"github.com/acharyye/graphRAG/internal/usecase/confidence"
	"github.com/acharyye/graphRAG/internal/usecase/synthesis"
)

// --- Mocks ---

type mockGuard struct {
	err error
}

func (m *mockGuard) Scope(tenantID string, dates domain.DateRange) (domain.TenantContext, error) {
	if m.err != nil {
		return domain.TenantContext{}, m.err
	}
	return domain.NewTenantContext(tenantID, dates)
}

type mockParser struct {
	gotSeeds []domain.EntityRef
	intent   domain.ParsedIntent
}

func (m *mockParser) Parse(_ string, requested domain.DateRange, seeds []domain.EntityRef) domain.ParsedIntent {
	m.gotSeeds = seeds
	out := m.intent
	out.Dates = requested
	return out
}

type mockGraphRetriever struct {
	items []domain.EvidenceItem
	err   error
	calls int
}

func (m *mockGraphRetriever) Retrieve(_ context.Context, _ domain.TenantContext, _ domain.ParsedIntent) ([]domain.EvidenceItem, error) {
	m.calls++
	return m.items, m.err
}

type mockVectorRetriever struct {
	items []domain.EvidenceItem
	err   error
	calls int
}

func (m *mockVectorRetriever) Retrieve(_ context.Context, _ domain.TenantContext, _ string, _ domain.ParsedIntent) ([]domain.EvidenceItem, error) {
	m.calls++
	return m.items, m.err
}

type mockFuser struct{}

func (mockFuser) Fuse(graphItems, vectorItems []domain.EvidenceItem) domain.EvidenceSet {
	return append(append(domain.EvidenceSet{}, graphItems...), vectorItems...)
}

type mockSynth struct {
	result      synthesis.Result
	err         error
	called      bool
	gotEvidence domain.EvidenceSet

	recs     []string
	recErr   error
	recCalls int
}

func (m *mockSynth) Synthesize(_ context.Context, _ string, evidence domain.EvidenceSet, _ []domain.ConversationTurn) (synthesis.Result, error) {
	m.called = true
	m.gotEvidence = evidence
	return m.result, m.err
}

func (m *mockSynth) Recommend(_ context.Context, _ domain.EvidenceSet) ([]string, error) {
	m.recCalls++
	return m.recs, m.recErr
}

type mockScorer struct {
	label  domain.Confidence
	reason string
	got    confidence.Input
}

func (m *mockScorer) Score(in confidence.Input) (domain.Confidence, string) {
	m.got = in
	return m.label, m.reason
}

type mockMemory struct {
	turns      []domain.ConversationTurn
	seeds      []domain.EntityRef
	recentErr  error
	appendErr  error
	appended   bool
	answer     string
	entities   []domain.EntityRef
	clearedID  string
	clearedFor string
}

func (m *mockMemory) Recent(_ context.Context, _, _ string) ([]domain.ConversationTurn, []domain.EntityRef, error) {
	return m.turns, m.seeds, m.recentErr
}

func (m *mockMemory) Append(_ context.Context, _, _, _, answer string, entities []domain.EntityRef) error {
	m.appended = true
	m.answer = answer
	m.entities = entities
	return m.appendErr
}

func (m *mockMemory) Clear(_ context.Context, tenantID, sessionID string) error {
	m.clearedFor = tenantID
	m.clearedID = sessionID
	return nil
}

type mockAuditor struct {
	records []audit.Record
}

func (m *mockAuditor) Write(_ context.Context, rec audit.Record) error {
	m.records = append(m.records, rec)
	return nil
}

// --- Helpers ---

type fixture struct {
	guard   *mockGuard
	parser  *mockParser
	graph   *mockGraphRetriever
	vector  *mockVectorRetriever
	synth   *mockSynth
	scorer  *mockScorer
	memory  *mockMemory
	auditor *mockAuditor
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		guard:   &mockGuard{},
		parser:  &mockParser{},
		graph:   &mockGraphRetriever{},
		vector:  &mockVectorRetriever{},
		synth:   &mockSynth{},
		scorer:  &mockScorer{label: domain.ConfidenceMedium},
		memory:  &mockMemory{},
		auditor: &mockAuditor{},
	}
	f.svc = New(
		f.guard, f.parser, f.graph, f.vector, mockFuser{},
		f.synth, f.scorer, f.memory, f.auditor, nil,
		Params{RetrieverTimeout: time.Second}, zap.NewNop(),
	)
	return f
}

func evidence(id string, score float64) domain.EvidenceItem {
	return domain.EvidenceItem{
		Source: domain.SourceGraph,
		Entity: domain.EntityRef{ID: id, Type: domain.EntityCampaign},
		Score:  score,
	}
}

func testRequest() Request {
	return Request{TenantID: "t1", Question: "how are my campaigns?", SessionID: "s1"}
}

// --- Tests ---

func TestExecute_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.graph.items = []domain.EvidenceItem{evidence("c1", 0.9)}
	f.vector.items = []domain.EvidenceItem{evidence("c2", 0.7)}
	f.synth.result = synthesis.Result{Answer: "campaigns are fine"}

	result, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "campaigns are fine" {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if result.Confidence != domain.ConfidenceMedium {
		t.Errorf("unexpected confidence %s", result.Confidence)
	}
	if result.QueryID == "" {
		t.Error("expected a query id")
	}
	if len(f.synth.gotEvidence) != 2 {
		t.Errorf("synthesizer should see the fused set, got %d items", len(f.synth.gotEvidence))
	}
	if !f.memory.appended {
		t.Error("expected the turn appended to memory")
	}
	if len(f.auditor.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(f.auditor.records))
	}
	if f.auditor.records[0].TenantID != "t1" {
		t.Errorf("audit record has wrong tenant: %s", f.auditor.records[0].TenantID)
	}
}

func TestExecute_EmptyEvidenceSkipsSynthesis(t *testing.T) {
	f := newFixture(t)
	f.scorer.label = domain.ConfidenceRefused
	f.scorer.reason = "no evidence found for this question in your data"

	result, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("an empty result is not a failure: %v", err)
	}
	if f.synth.called {
		t.Error("synthesizer must not run on empty evidence")
	}
	if result.Confidence != domain.ConfidenceRefused {
		t.Errorf("expected REFUSED, got %s", result.Confidence)
	}
	if result.Answer != "" {
		t.Errorf("refused result must carry no answer, got %q", result.Answer)
	}
	if result.RefusalReason == "" {
		t.Error("expected a refusal reason")
	}
}

func TestExecute_RefusalClearsAnswerAndIsRemembered(t *testing.T) {
	f := newFixture(t)
	f.graph.items = []domain.EvidenceItem{evidence("c1", 0.9)}
	f.synth.result = synthesis.Result{Insufficient: true}
	f.scorer.label = domain.ConfidenceRefused
	f.scorer.reason = "the available evidence does not answer this question"

	result, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "" || result.Claims != nil {
		t.Error("refused result must carry no answer or claims")
	}
	if !f.memory.appended {
		t.Fatal("refused turns must still be remembered")
	}
	if !strings.HasPrefix(f.memory.answer, "(refused:") {
		t.Errorf("expected refusal marker in remembered answer, got %q", f.memory.answer)
	}
	if !f.scorer.got.Insufficient {
		t.Error("scorer must see the insufficiency signal")
	}
}

func TestExecute_OneRetrieverFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.graph.err = errors.New("graph store down")
	f.vector.items = []domain.EvidenceItem{evidence("c2", 0.7)}
	f.synth.result = synthesis.Result{Answer: "partial view"}

	result, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("one failed retriever must not fail the query: %v", err)
	}
	if len(result.Evidence) != 1 || result.Evidence[0].Entity.ID != "c2" {
		t.Errorf("expected vector evidence only, got %v", result.Evidence)
	}
	if f.graph.calls != 2 {
		t.Errorf("expected the failing retriever retried once, got %d calls", f.graph.calls)
	}
	if f.vector.calls != 1 {
		t.Errorf("expected no retry for the healthy retriever, got %d calls", f.vector.calls)
	}
}

func TestExecute_BothRetrieversFailingFailsQuery(t *testing.T) {
	f := newFixture(t)
	f.graph.err = errors.New("graph down")
	f.vector.err = errors.New("index down")

	_, err := f.svc.Execute(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrRetrievalFailed) {
		t.Fatalf("expected ErrRetrievalFailed, got %v", err)
	}
	var stepErr *domain.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != domain.StepRetrieving {
		t.Errorf("expected failure at the retrieving step, got %v", err)
	}
	if f.memory.appended {
		t.Error("failed queries must not be remembered")
	}
}

func TestExecute_InvalidTenantFailsAtScope(t *testing.T) {
	f := newFixture(t)
	f.guard.err = domain.ErrInvalidTenant

	_, err := f.svc.Execute(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrInvalidTenant) {
		t.Fatalf("expected ErrInvalidTenant, got %v", err)
	}
	var stepErr *domain.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != domain.StepScoped {
		t.Errorf("expected failure at the scope step, got %v", err)
	}
	if f.graph.calls != 0 || f.vector.calls != 0 {
		t.Error("retrievers must not run for an invalid tenant")
	}
}

func TestExecute_SessionTenantMismatchIsFatal(t *testing.T) {
	f := newFixture(t)
	f.memory.recentErr = domain.ErrTenantMismatch

	_, err := f.svc.Execute(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
}

func TestExecute_HistoryStoreErrorDegradesToFreshTurn(t *testing.T) {
	f := newFixture(t)
	f.memory.recentErr = errors.New("redis timeout")
	f.memory.seeds = []domain.EntityRef{{ID: "c1", Type: domain.EntityCampaign}}
	f.scorer.label = domain.ConfidenceRefused
	f.scorer.reason = "no evidence found for this question in your data"

	_, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("a history hiccup must not fail the query: %v", err)
	}
	if f.parser.gotSeeds != nil {
		t.Error("seeds from a failed history load must be discarded")
	}
}

func TestExecute_SynthesisFailureFailsQuery(t *testing.T) {
	f := newFixture(t)
	f.graph.items = []domain.EvidenceItem{evidence("c1", 0.9)}
	f.synth.err = domain.ErrSynthesis

	_, err := f.svc.Execute(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrSynthesis) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	var stepErr *domain.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != domain.StepSynthesizing {
		t.Errorf("expected failure at the synthesizing step, got %v", err)
	}
	if f.memory.appended {
		t.Error("failed queries must not be remembered")
	}
}

func TestExecute_CanceledRequestLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.graph.items = []domain.EvidenceItem{evidence("c1", 0.9)}
	f.synth.result = synthesis.Result{Answer: "too late"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Execute(ctx, testRequest())
	if err == nil {
		t.Fatal("expected an error for a canceled request")
	}
	if f.memory.appended {
		t.Error("a canceled request must not be remembered")
	}
	if len(f.auditor.records) != 0 {
		t.Error("a canceled request must not be audited")
	}
}

func TestExecute_RememberedEntitiesAreCapped(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		f.graph.items = append(f.graph.items, evidence(id, 0.5))
	}
	f.synth.result = synthesis.Result{Answer: "many campaigns"}

	_, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.memory.entities) != maxRememberedEntities {
		t.Errorf("expected %d remembered entities, got %d", maxRememberedEntities, len(f.memory.entities))
	}
}

func TestExecute_StatelessQuerySkipsMemory(t *testing.T) {
	f := newFixture(t)
	f.graph.items = []domain.EvidenceItem{evidence("c1", 0.9)}
	f.synth.result = synthesis.Result{Answer: "ok"}

	req := testRequest()
	req.SessionID = ""
	if _, err := f.svc.Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.memory.appended {
		t.Error("stateless queries must not touch session memory")
	}
}

func TestExecute_ScopeViolationNotRetried(t *testing.T) {
	f := newFixture(t)
	f.graph.err = domain.ErrTenantMismatch
	f.vector.items = []domain.EvidenceItem{evidence("c2", 0.7)}
	f.synth.result = synthesis.Result{Answer: "partial view"}

	_, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.graph.calls != 1 {
		t.Errorf("a tenant mismatch is deterministic and must not be retried, got %d calls", f.graph.calls)
	}
}

func TestExecute_PerformanceIntentCarriesRecommendations(t *testing.T) {
	f := newFixture(t)
	f.parser.intent = domain.ParsedIntent{QueryType: domain.QueryPerformance}
	f.graph.items = []domain.EvidenceItem{evidence("a", 0.9), evidence("b", 0.8), evidence("c", 0.7)}
	f.synth.result = synthesis.Result{Answer: "ctr is strong"}
	f.synth.recs = []string{"Shift budget to Summer Sale", "Pause the lowest CTR ad set"}

	result, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.synth.recCalls != 1 {
		t.Fatalf("expected one recommendation call, got %d", f.synth.recCalls)
	}
	if len(result.Recommendations) != 2 {
		t.Errorf("expected recommendations carried, got %v", result.Recommendations)
	}
}

func TestExecute_ThinEvidenceSkipsRecommendations(t *testing.T) {
	f := newFixture(t)
	f.parser.intent = domain.ParsedIntent{QueryType: domain.QueryPerformance}
	f.graph.items = []domain.EvidenceItem{evidence("a", 0.9), evidence("b", 0.8)}
	f.synth.result = synthesis.Result{Answer: "thin"}
	f.synth.recs = []string{"should not appear"}

	result, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.synth.recCalls != 0 {
		t.Errorf("below the evidence floor suggestions are guesswork, got %d calls", f.synth.recCalls)
	}
	if result.Recommendations != nil {
		t.Errorf("unexpected recommendations %v", result.Recommendations)
	}
}

func TestExecute_GeneralIntentSkipsRecommendations(t *testing.T) {
	f := newFixture(t)
	f.parser.intent = domain.ParsedIntent{QueryType: domain.QueryGeneral}
	f.graph.items = []domain.EvidenceItem{evidence("a", 0.9), evidence("b", 0.8), evidence("c", 0.7)}
	f.synth.result = synthesis.Result{Answer: "a list"}

	if _, err := f.svc.Execute(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.synth.recCalls != 0 {
		t.Errorf("general questions carry no suggestions, got %d calls", f.synth.recCalls)
	}
}

func TestExecute_RefusedQuerySkipsRecommendations(t *testing.T) {
	f := newFixture(t)
	f.parser.intent = domain.ParsedIntent{QueryType: domain.QueryRanking}
	f.graph.items = []domain.EvidenceItem{evidence("a", 0.9), evidence("b", 0.8), evidence("c", 0.7)}
	f.synth.result = synthesis.Result{Insufficient: true}
	f.scorer.label = domain.ConfidenceRefused
	f.scorer.reason = "the available evidence does not answer this question"

	if _, err := f.svc.Execute(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.synth.recCalls != 0 {
		t.Errorf("a refusal must not trigger suggestions, got %d calls", f.synth.recCalls)
	}
}

func TestExecute_RecommendationFailureIsAdvisory(t *testing.T) {
	f := newFixture(t)
	f.parser.intent = domain.ParsedIntent{QueryType: domain.QueryFinancial}
	f.graph.items = []domain.EvidenceItem{evidence("a", 0.9), evidence("b", 0.8), evidence("c", 0.7)}
	f.synth.result = synthesis.Result{Answer: "spend is on plan"}
	f.synth.recErr = domain.ErrSynthesis

	result, err := f.svc.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("a failed suggestion call must not fail the query: %v", err)
	}
	if result.Answer != "spend is on plan" {
		t.Errorf("answer lost: %q", result.Answer)
	}
	if result.Recommendations != nil {
		t.Errorf("unexpected recommendations %v", result.Recommendations)
	}
}

func TestClearSession_Delegates(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.ClearSession(context.Background(), "t1", "s9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.memory.clearedFor != "t1" || f.memory.clearedID != "s9" {
		t.Errorf("clear not delegated: %s/%s", f.memory.clearedFor, f.memory.clearedID)
	}
}
