package query

import (
	"context"
	"fmt"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/repository/graphdata"
	"github.com/acharyye/graphRAG/internal/usecase/retrieval"
)

// Roles allowed to drill into raw evidence.
const (
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
)

// DrillDownRequest asks for the raw breakdown of one entity.
type DrillDownRequest struct {
	TenantID string
	Role     string
	Entity   domain.EntityRef
	Dates    domain.DateRange
}

// DrillDown returns an entity's children and daily metrics. It bypasses
// confidence gating entirely, which is why it is gated on role instead:
// analysts inspect raw data, viewers only see scored answers.
func (s *Service) DrillDown(ctx context.Context, req DrillDownRequest) (*domain.DrillDown, error) {
	if req.Role != RoleAnalyst && req.Role != RoleAdmin {
		return nil, fmt.Errorf("role %q: %w", req.Role, domain.ErrDrillDownForbidden)
	}

	tc, err := s.guard.Scope(req.TenantID, req.Dates)
	if err != nil {
		return nil, err
	}

	node, err := s.drill.Entity(tc.TenantID(), req.Entity)
	if err != nil {
		return nil, err
	}

	samples, err := s.drill.Metrics(tc.TenantID(), req.Entity, req.Dates)
	if err != nil {
		return nil, err
	}

	children, err := s.drill.Children(tc.TenantID(), req.Entity)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.DrillDownRow, 0, len(children))
	for _, child := range children {
		ref := graphdata.Ref(child)
		childSamples, err := s.drill.Metrics(tc.TenantID(), ref, req.Dates)
		if err != nil {
			return nil, err
		}
		row := retrieval.Totals(childSamples)
		row.Entity = ref
		row.Name = child.StringProp(graphdata.PropName)
		rows = append(rows, row)
	}

	name := node.StringProp(graphdata.PropName)
	totals := retrieval.Totals(samples)
	totals.Entity = req.Entity
	totals.Name = name

	return &domain.DrillDown{
		Entity:    req.Entity,
		Name:      name,
		Snippet:   retrieval.Summarize(name, node.Label, node.StringProp(graphdata.PropChannel), samples),
		Children:  rows,
		Totals:    totals,
		Breakdown: samples,
	}, nil
}
