package fuse

import (
	"testing"
	"time"

	"github.com/acharyye/graphRAG/internal/domain"
)

func gItem(id string, score float64) domain.EvidenceItem {
	return domain.EvidenceItem{
		Source: domain.SourceGraph,
		Entity: domain.EntityRef{ID: id, Type: domain.EntityCampaign},
		Name:   "campaign " + id,
		Score:  score,
	}
}

func vItem(id string, score float64) domain.EvidenceItem {
	return domain.EvidenceItem{
		Source: domain.SourceVector,
		Entity: domain.EntityRef{ID: id, Type: domain.EntityCampaign},
		Score:  score,
	}
}

func newTestFuser() *Fuser {
	return New(Params{AgreementBonus: 0.1, Cap: 20})
}

func TestFuse_DeduplicatesAndMarksAgreement(t *testing.T) {
	f := newTestFuser()

	out := f.Fuse(
		[]domain.EvidenceItem{gItem("c1", 0.8)},
		[]domain.EvidenceItem{vItem("c1", 0.6), vItem("c2", 0.5)},
	)

	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	merged := out[0]
	if merged.Entity.ID != "c1" {
		t.Fatalf("expected c1 first, got %s", merged.Entity.ID)
	}
	if !merged.Agreement {
		t.Error("expected merged item marked as agreement")
	}
	if merged.Score != 0.9 {
		t.Errorf("expected max(0.8,0.6)+0.1 = 0.9, got %v", merged.Score)
	}
	if merged.Source != domain.SourceGraph {
		t.Errorf("expected graph metadata to win, got %s", merged.Source)
	}
	if out[1].Agreement {
		t.Error("single-source item must not be marked as agreement")
	}
}

func TestFuse_VectorScoreWinsWhenHigher(t *testing.T) {
	f := newTestFuser()

	out := f.Fuse(
		[]domain.EvidenceItem{gItem("c1", 0.4)},
		[]domain.EvidenceItem{vItem("c1", 0.9)},
	)

	if len(out) != 1 {
		t.Fatalf("expected 1 item, got %d", len(out))
	}
	if out[0].Score != 1.0 {
		t.Errorf("expected 0.9+0.1 capped at 1.0, got %v", out[0].Score)
	}
	if out[0].Source != domain.SourceGraph {
		t.Errorf("graph metadata should still win, got %s", out[0].Source)
	}
}

func TestFuse_OrderingAndTieBreaks(t *testing.T) {
	f := newTestFuser()

	out := f.Fuse(
		[]domain.EvidenceItem{gItem("g1", 0.7), gItem("g2", 0.7)},
		[]domain.EvidenceItem{vItem("v1", 0.7), vItem("v2", 0.9)},
	)

	ids := make([]string, len(out))
	for i, it := range out {
		ids[i] = it.Entity.ID
	}
	want := []string{"v2", "g1", "g2", "v1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %v", i, want[i], ids)
		}
	}
}

func TestFuse_Deterministic(t *testing.T) {
	f := newTestFuser()
	graph := []domain.EvidenceItem{gItem("a", 0.5), gItem("b", 0.5), gItem("c", 0.5)}
	vector := []domain.EvidenceItem{vItem("d", 0.5), vItem("b", 0.5)}

	first := f.Fuse(graph, vector)
	for n := 0; n < 10; n++ {
		again := f.Fuse(graph, vector)
		if len(again) != len(first) {
			t.Fatal("fusion size not deterministic")
		}
		for i := range first {
			if again[i].Entity != first[i].Entity {
				t.Fatalf("fusion order not deterministic at %d", i)
			}
		}
	}
}

func TestFuse_CapTruncates(t *testing.T) {
	f := New(Params{AgreementBonus: 0.1, Cap: 2})

	out := f.Fuse(
		[]domain.EvidenceItem{gItem("a", 0.9), gItem("b", 0.8), gItem("c", 0.7)},
		nil,
	)

	if len(out) != 2 {
		t.Fatalf("expected cap of 2, got %d", len(out))
	}
	if out[0].Entity.ID != "a" || out[1].Entity.ID != "b" {
		t.Errorf("expected highest scored kept, got %s %s", out[0].Entity.ID, out[1].Entity.ID)
	}
}

func TestFuse_EmptyInputs(t *testing.T) {
	f := newTestFuser()

	if out := f.Fuse(nil, nil); len(out) != 0 {
		t.Fatalf("expected empty set, got %d", len(out))
	}
	if out := f.Fuse([]domain.EvidenceItem{gItem("a", 0.5)}, nil); len(out) != 1 {
		t.Fatalf("expected 1 item, got %d", len(out))
	}
}

func TestFuse_DateUnion(t *testing.T) {
	f := newTestFuser()

	jan := domain.DateRange{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	feb := domain.DateRange{
		Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
	}

	g := gItem("c1", 0.8)
	g.Dates = jan
	v := vItem("c1", 0.6)
	v.Dates = feb

	out := f.Fuse([]domain.EvidenceItem{g}, []domain.EvidenceItem{v})
	if len(out) != 1 {
		t.Fatalf("expected 1 item, got %d", len(out))
	}
	if !out[0].Dates.Start.Equal(jan.Start) || !out[0].Dates.End.Equal(feb.End) {
		t.Errorf("expected date union Jan-Feb, got %s", out[0].Dates)
	}
}
