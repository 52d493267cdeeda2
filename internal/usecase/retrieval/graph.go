// Package retrieval implements the two evidence retrievers of the engine:
// structural graph traversal and vector similarity search. Both take a
// validated tenant context and fail closed without one.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
	"github.com/acharyye/graphRAG/internal/repository/graphdata"
)

// Relevance scores assigned by the graph retriever. A name match beats a
// metric match beats mere structural proximity.
const (
	scoreNameMatch  = 0.95
	scoreHasMetrics = 0.8
	scoreStructural = 0.7
	scoreHopDecay   = 0.15
	scoreFloor      = 0.3
)

// GraphParams bound a single traversal.
type GraphParams struct {
	HopLimit int // maximum structural distance from the client node
	Limit    int // maximum evidence items returned
}

// Graph retrieves evidence by breadth-first traversal of the tenant's
// subgraph. Isolation holds by construction: traversal starts at the
// tenant's client node and every fetched node is ownership-checked by the
// repository.
type Graph struct {
	reader GraphReader
	params GraphParams
	logger *zap.Logger
}

// NewGraph creates the graph retriever.
func NewGraph(reader GraphReader, params GraphParams, logger *zap.Logger) *Graph {
	return &Graph{reader: reader, params: params, logger: logger}
}

type frontierEntry struct {
	ref  domain.EntityRef
	hops int
}

// Retrieve walks the tenant subgraph and scores every reachable entity.
// Seed entities from follow-up turns join the frontier after an ownership
// check; seeds owned by another tenant abort the whole retrieval.
func (g *Graph) Retrieve(ctx context.Context, tc domain.TenantContext, intent domain.ParsedIntent) ([]domain.EvidenceItem, error) {
	if !tc.Valid() {
		return nil, domain.ErrInvalidTenant
	}

	frontier := []frontierEntry{{ref: graphdata.ClientRef(tc.TenantID()), hops: 0}}
	for _, seed := range intent.SeedEntities {
		if _, err := g.reader.Entity(tc.TenantID(), seed); err != nil {
			if errors.Is(err, domain.ErrTenantMismatch) {
				return nil, fmt.Errorf("seed entity %s: %w", seed.Key(), err)
			}
			// Stale seeds from old turns are skipped, not fatal.
			continue
		}
		frontier = append(frontier, frontierEntry{ref: seed, hops: 1})
	}

	visited := make(map[string]bool)
	var items []domain.EvidenceItem
	now := time.Now().UTC()

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := frontier[0]
		frontier = frontier[1:]
		if visited[entry.ref.Key()] {
			continue
		}
		visited[entry.ref.Key()] = true

		node, err := g.reader.Entity(tc.TenantID(), entry.ref)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}

		if entry.hops < g.params.HopLimit {
			children, err := g.reader.Children(tc.TenantID(), entry.ref)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				frontier = append(frontier, frontierEntry{ref: graphdata.Ref(child), hops: entry.hops + 1})
			}
		}

		if node.Label == domain.EntityClient {
			continue
		}

		item, ok, err := g.scoreNode(tc, intent, node, entry.hops, now)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > g.params.Limit {
		items = items[:g.params.Limit]
	}
	return items, nil
}

func (g *Graph) scoreNode(
	tc domain.TenantContext,
	intent domain.ParsedIntent,
	node *graph.Node,
	hops int,
	now time.Time,
) (domain.EvidenceItem, bool, error) {
	ref := graphdata.Ref(node)

	if intent.EntityType != "" && node.Label != intent.EntityType {
		return domain.EvidenceItem{}, false, nil
	}

	channel, err := g.channelOf(tc, node, ref)
	if err != nil {
		return domain.EvidenceItem{}, false, err
	}
	if intent.Channel != "" && channel != "" && channel != intent.Channel {
		return domain.EvidenceItem{}, false, nil
	}

	samples, err := g.reader.Metrics(tc.TenantID(), ref, intent.Dates)
	if err != nil {
		return domain.EvidenceItem{}, false, err
	}

	name := node.StringProp(graphdata.PropName)
	nameMatch := matchesTerms(name, intent.Terms)

	score := maxFloat(scoreFloor, scoreStructural-scoreHopDecay*float64(hops-1))
	switch {
	case nameMatch:
		score = scoreNameMatch
	case len(samples) > 0:
		score = scoreHasMetrics
	}

	return domain.EvidenceItem{
		Source:      domain.SourceGraph,
		Entity:      ref,
		Name:        name,
		Snippet:     Summarize(name, node.Label, channel, samples),
		Score:       score,
		Dates:       sampleCoverage(samples),
		Hops:        hops,
		NameMatch:   nameMatch,
		RetrievedAt: now,
	}, true, nil
}

// channelOf resolves the delivery channel of a node. Campaigns carry channel
// edges; ad sets and ads inherit their campaign's channel via a property set
// at ingest time.
func (g *Graph) channelOf(tc domain.TenantContext, node *graph.Node, ref domain.EntityRef) (string, error) {
	if ch := node.StringProp(graphdata.PropChannel); ch != "" {
		return ch, nil
	}
	if node.Label != domain.EntityCampaign {
		return "", nil
	}
	channels, err := g.reader.Channels(tc.TenantID(), ref)
	if err != nil {
		return "", err
	}
	if len(channels) == 0 {
		return "", nil
	}
	return channels[0].StringProp(graphdata.PropName), nil
}

func matchesTerms(name string, terms []string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
