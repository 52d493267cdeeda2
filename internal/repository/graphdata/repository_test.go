package graphdata

import (
	"errors"
	"testing"
	"time"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
)

var (
	campaignRef = domain.EntityRef{ID: "c1", Type: domain.EntityCampaign}
	adsetRef    = domain.EntityRef{ID: "a1", Type: domain.EntityAdSet}
	foreignRef  = domain.EntityRef{ID: "x9", Type: domain.EntityCampaign}
)

func TestClientExists(t *testing.T) {
	repo := newTestRepo(t)

	ok, err := repo.ClientExists("t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected t1 to exist")
	}

	ok, err = repo.ClientExists("ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("unknown tenant must not exist")
	}
}

func TestEntity_OwnershipEnforced(t *testing.T) {
	repo := newTestRepo(t)

	node, err := repo.Entity("t1", campaignRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.StringProp(PropName) != "Summer Sale" {
		t.Errorf("unexpected name %q", node.StringProp(PropName))
	}

	if _, err := repo.Entity("t1", foreignRef); !errors.Is(err, domain.ErrTenantMismatch) {
		t.Errorf("foreign entity: expected ErrTenantMismatch, got %v", err)
	}

	missing := domain.EntityRef{ID: "nope", Type: domain.EntityCampaign}
	if _, err := repo.Entity("t1", missing); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing entity: expected ErrNotFound, got %v", err)
	}
}

func TestChildren_DropsForeignNodes(t *testing.T) {
	repo := newTestRepo(t)

	children, err := repo.Children("t1", ClientRef("t1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The foreign campaign is linked under t1's client but owned by t2.
	if len(children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(children))
	}
	if children[0].StringProp(PropName) != "Summer Sale" {
		t.Errorf("unexpected child %q", children[0].StringProp(PropName))
	}
}

func TestChannels(t *testing.T) {
	repo := newTestRepo(t)

	channels, err := repo.Channels("t1", campaignRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(channels) != 1 || channels[0].StringProp(PropName) != "google_ads" {
		t.Errorf("unexpected channels: %+v", channels)
	}
}

func TestChannels_NodesAreTenantScoped(t *testing.T) {
	repo := newTestRepo(t)

	// A second tenant advertising on the same channel writes its own node.
	// With a shared node its upsert would take ownership and hide the
	// channel from t1.
	t2Channel := ChannelRef("t2", "google_ads")
	if err := repo.UpsertEntity("t2", t2Channel, "google_ads", nil); err != nil {
		t.Fatalf("seed t2 channel: %v", err)
	}
	if err := repo.Link(foreignRef, t2Channel, graph.EdgeAdvertisesOn); err != nil {
		t.Fatalf("link t2 channel: %v", err)
	}

	channels, err := repo.Channels("t1", campaignRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(channels) != 1 || channels[0].TenantID != "t1" {
		t.Fatalf("t1 must keep its own channel node, got %+v", channels)
	}

	channels, err = repo.Channels("t2", foreignRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(channels) != 1 || channels[0].StringProp(PropName) != "google_ads" {
		t.Errorf("t2 must see its own channel node, got %+v", channels)
	}
}

func TestMetrics_SortedAndDateFiltered(t *testing.T) {
	repo := newTestRepo(t)

	samples, err := repo.Metrics("t1", adsetRef, domain.DateRange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if !samples[0].Date.Before(samples[1].Date) {
		t.Error("samples must be sorted by date")
	}
	if samples[0].Clicks != 40 || samples[1].Clicks != 60 {
		t.Errorf("unexpected clicks: %d, %d", samples[0].Clicks, samples[1].Clicks)
	}

	onlyFirst := domain.DateRange{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	samples, err = repo.Metrics("t1", adsetRef, onlyFirst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 || samples[0].Clicks != 40 {
		t.Errorf("expected only the first day, got %+v", samples)
	}
}

func TestAddMetricSample_Idempotent(t *testing.T) {
	repo := newTestRepo(t)

	sample := domain.MetricSample{
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Impressions: 9999,
		Clicks:      99,
	}
	if err := repo.AddMetricSample("t1", adsetRef, sample); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples, err := repo.Metrics("t1", adsetRef, domain.DateRange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Re-adding the same day replaces the metric node, it never duplicates it.
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples after overwrite, got %d", len(samples))
	}
	if samples[0].Clicks != 99 {
		t.Errorf("expected overwritten clicks 99, got %d", samples[0].Clicks)
	}
}

func TestParentOf(t *testing.T) {
	repo := newTestRepo(t)

	parent, err := repo.ParentOf("t1", adsetRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parent == nil || parent.StringProp(PropName) != "Summer Sale" {
		t.Errorf("unexpected parent: %+v", parent)
	}

	root, err := repo.ParentOf("t1", ClientRef("t1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != nil {
		t.Errorf("client must have no parent, got %+v", root)
	}
}

func TestRef_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	node, err := repo.Entity("t1", campaignRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Ref(node); got != campaignRef {
		t.Errorf("expected %+v, got %+v", campaignRef, got)
	}
}
