package graphdata

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
)

// newTestRepo opens an in-memory engine seeded with one tenant tree:
//
//	client:t1 -> campaign:c1 (Summer Sale) -> adset:a1 (Prospecting)
//	campaign:c1 -> channel:google_ads
//	adset:a1 daily metrics on 2025-06-01 and 2025-06-02
//
// plus a foreign campaign owned by t2 linked under t1's client to exercise
// ownership filtering.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	engine, err := graph.OpenInMemory()
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	repo := New(engine, zap.NewNop())

	client := ClientRef("t1")
	campaign := domain.EntityRef{ID: "c1", Type: domain.EntityCampaign}
	adset := domain.EntityRef{ID: "a1", Type: domain.EntityAdSet}
	channel := ChannelRef("t1", "google_ads")
	foreign := domain.EntityRef{ID: "x9", Type: domain.EntityCampaign}

	seed := []struct {
		tenant string
		ref    domain.EntityRef
		name   string
	}{
		{"t1", client, "Acme"},
		{"t1", campaign, "Summer Sale"},
		{"t1", adset, "Prospecting"},
		{"t1", channel, "google_ads"},
		{"t2", foreign, "Other Co Campaign"},
	}
	for _, s := range seed {
		if err := repo.UpsertEntity(s.tenant, s.ref, s.name, nil); err != nil {
			t.Fatalf("seed %s: %v", s.ref.Key(), err)
		}
	}

	links := []struct {
		from, to domain.EntityRef
		edgeType graph.EdgeType
	}{
		{client, campaign, graph.EdgeRuns},
		{client, foreign, graph.EdgeRuns}, // cross-tenant edge, must be filtered out
		{campaign, adset, graph.EdgeContains},
		{campaign, channel, graph.EdgeAdvertisesOn},
	}
	for _, l := range links {
		if err := repo.Link(l.from, l.to, l.edgeType); err != nil {
			t.Fatalf("link %s->%s: %v", l.from.Key(), l.to.Key(), err)
		}
	}

	for day, clicks := range map[int]int64{1: 40, 2: 60} {
		sample := domain.MetricSample{
			Date:        time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
			Impressions: 1000 * int64(day),
			Clicks:      clicks,
			Spend:       50.0 * float64(day),
		}
		if err := repo.AddMetricSample("t1", adset, sample); err != nil {
			t.Fatalf("seed metric day %d: %v", day, err)
		}
	}

	return repo
}
