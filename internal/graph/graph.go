// Package graph is an embedded labeled property graph over BadgerDB.
// It holds the marketing knowledge graph: client, campaign, ad set, ad,
// channel, and metric nodes connected by typed relationships.
package graph

import (
	"errors"
	"time"
)

// Storage errors.
var (
	ErrNotFound    = errors.New("graph: not found")
	ErrInvalidNode = errors.New("graph: invalid node")
	ErrInvalidEdge = errors.New("graph: invalid edge")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// EdgeType is a typed relationship name.
type EdgeType string

// Relationship types of the marketing graph.
const (
	EdgeRuns         EdgeType = "RUNS"          // client -> campaign
	EdgeContains     EdgeType = "CONTAINS"      // campaign -> adset, adset -> ad
	EdgeHasMetric    EdgeType = "HAS_METRIC"    // entity -> metric
	EdgeAdvertisesOn EdgeType = "ADVERTISES_ON" // campaign -> channel
)

// Node is a labeled property graph node. TenantID is denormalized onto every
// node so ownership checks never require a traversal back to the client node.
type Node struct {
	ID         NodeID         `json:"id"`
	Label      string         `json:"label"`
	TenantID   string         `json:"tenant_id"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
}

// StringProp returns a string property or "".
func (n *Node) StringProp(key string) string {
	if v, ok := n.Properties[key].(string); ok {
		return v
	}
	return ""
}

// FloatProp returns a numeric property or 0. JSON round-trips store numbers
// as float64.
func (n *Node) FloatProp(key string) float64 {
	switch v := n.Properties[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Edge is a directed typed relationship between two nodes.
type Edge struct {
	ID   EdgeID   `json:"id"`
	From NodeID   `json:"from"`
	To   NodeID   `json:"to"`
	Type EdgeType `json:"type"`
}
