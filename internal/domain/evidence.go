package domain

import "time"

// SourceKind tells which retriever produced an evidence item.
type SourceKind string

const (
	// SourceGraph marks evidence found by graph traversal.
	SourceGraph SourceKind = "graph"
	// SourceVector marks evidence found by vector similarity search.
	SourceVector SourceKind = "vector"
)

// EntityType enumerates the node types of the marketing graph.
const (
	EntityClient   = "client"
	EntityCampaign = "campaign"
	EntityAdSet    = "adset"
	EntityAd       = "ad"
	EntityChannel  = "channel"
	EntityMetric   = "metric"
)

// EntityRef is an opaque reference to a graph entity.
type EntityRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Key returns the deduplication key for evidence fusion.
func (r EntityRef) Key() string { return r.Type + ":" + r.ID }

// IsZero reports whether the reference is unset.
func (r EntityRef) IsZero() bool { return r.ID == "" }

// EvidenceItem is a single piece of retrieved evidence. Items live only for
// the duration of one query; nothing here is persisted past the request.
type EvidenceItem struct {
	Source      SourceKind
	Entity      EntityRef
	Name        string
	Snippet     string
	Score       float64
	Agreement   bool // set by the fuser when both retrievers surfaced the entity
	Dates       DateRange
	Hops        int // structural distance from the tenant's client node
	NameMatch   bool
	RetrievedAt time.Time
}

// EvidenceSet is an ordered, deduplicated, capped sequence of evidence items.
// The fuser guarantees no two items share an entity reference.
type EvidenceSet []EvidenceItem

// HasAgreement reports whether any item was surfaced by both retrievers.
func (s EvidenceSet) HasAgreement() bool {
	for _, it := range s {
		if it.Agreement {
			return true
		}
	}
	return false
}

// Coverage returns the union of the items' date ranges. Items without dates
// contribute nothing; a zero result means no item carried dates at all.
func (s EvidenceSet) Coverage() DateRange {
	var cov DateRange
	for _, it := range s {
		cov = cov.Union(it.Dates)
	}
	return cov
}

// Refs returns the entity references of all items, in order.
func (s EvidenceSet) Refs() []EntityRef {
	refs := make([]EntityRef, len(s))
	for i, it := range s {
		refs[i] = it.Entity
	}
	return refs
}
