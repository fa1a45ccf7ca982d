package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Source provides the raw plan list the catalog is built from.
type Source interface {
	Plans(ctx context.Context) ([]Plan, error)
}

// Catalog is the read-only set of plans with exactly one registration default.
type Catalog struct {
	byID    map[string]Plan
	ordered []Plan
	def     Plan
}

// NewCatalog validates plans and builds a catalog ordered by SortOrder, then price.
func NewCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plans", ErrInvalidCatalog)
	}

	c := &Catalog{byID: make(map[string]Plan, len(plans))}
	defaults := 0
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return nil, errors.Join(ErrInvalidCatalog, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidCatalog, p.ID)
		}
		p.Features = slices.Clone(p.Features)
		c.byID[p.ID] = p
		c.ordered = append(c.ordered, p)
		if p.Default {
			defaults++
			c.def = p
		}
	}
	if defaults != 1 {
		return nil, fmt.Errorf("%w: exactly one default plan required, got %d", ErrInvalidCatalog, defaults)
	}

	slices.SortStableFunc(c.ordered, func(a, b Plan) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		switch {
		case a.Price.Amount < b.Price.Amount:
			return -1
		case a.Price.Amount > b.Price.Amount:
			return 1
		}
		return 0
	})
	return c, nil
}

// Load builds a catalog from src.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	plans, err := src.Plans(ctx)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	return NewCatalog(plans)
}

func (c *Catalog) Get(id string) (Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// List returns public plans, or every plan when all is true.
func (c *Catalog) List(all bool) []Plan {
	out := make([]Plan, 0, len(c.ordered))
	for _, p := range c.ordered {
		if all || p.Public {
			out = append(out, p)
		}
	}
	return out
}

// Default returns the plan new accounts are registered on.
func (c *Catalog) Default() Plan { return c.def }

// MemorySource serves a fixed plan list.
type MemorySource []Plan

func (m MemorySource) Plans(context.Context) ([]Plan, error) {
	return slices.Clone(m), nil
}
