// Package fuse merges graph and vector evidence into one ranked set.
// The fuser is pure: no I/O, no clock, fully deterministic for a given
// input order.
package fuse

import (
	"sort"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Params tune fusion.
type Params struct {
	AgreementBonus float64 // added when both retrievers surfaced the same entity
	Cap            int     // maximum fused set size
}

// Fuser combines evidence lists.
type Fuser struct {
	params Params
}

// New creates a fuser.
func New(params Params) *Fuser {
	return &Fuser{params: params}
}

// Fuse unions the two lists, deduplicating by entity. An entity present in
// both lists keeps the higher score plus the agreement bonus and is marked
// as agreed. Graph items win metadata conflicts because traversal carries
// richer context than the index. Ordering is score-descending; ties break
// graph before vector, then first-seen order, so output is stable.
func (f *Fuser) Fuse(graphItems, vectorItems []domain.EvidenceItem) domain.EvidenceSet {
	type slot struct {
		item  domain.EvidenceItem
		order int
	}

	byKey := make(map[string]*slot, len(graphItems)+len(vectorItems))
	keys := make([]string, 0, len(graphItems)+len(vectorItems))

	add := func(item domain.EvidenceItem) {
		key := item.Entity.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = &slot{item: item, order: len(keys)}
			keys = append(keys, key)
			return
		}

		merged := existing.item
		crossSource := item.Source != merged.Source
		if item.Source == domain.SourceGraph && merged.Source == domain.SourceVector {
			// Prefer the graph-side name, snippet, and hop metadata.
			score := merged.Score
			merged = item
			if score > merged.Score {
				merged.Score = score
			}
		} else if item.Score > merged.Score {
			merged.Score = item.Score
		}
		if crossSource && !merged.Agreement {
			merged.Agreement = true
			merged.Score += f.params.AgreementBonus
			if merged.Score > 1.0 {
				merged.Score = 1.0
			}
		}
		merged.Dates = merged.Dates.Union(item.Dates)
		existing.item = merged
	}

	for _, it := range graphItems {
		add(it)
	}
	for _, it := range vectorItems {
		add(it)
	}

	slots := make([]*slot, 0, len(keys))
	for _, key := range keys {
		slots = append(slots, byKey[key])
	}

	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.item.Score != b.item.Score {
			return a.item.Score > b.item.Score
		}
		if a.item.Source != b.item.Source {
			return a.item.Source == domain.SourceGraph
		}
		return a.order < b.order
	})

	out := make(domain.EvidenceSet, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.item)
	}
	if f.params.Cap > 0 && len(out) > f.params.Cap {
		out = out[:f.params.Cap]
	}
	return out
}
