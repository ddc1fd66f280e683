package ssg

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// Enumerator produces part of the asset list. It may block on I/O.
type Enumerator func(ctx context.Context) ([]Asset, error)

// Fixed returns an enumerator for a statically known list.
func Fixed(assets ...Asset) Enumerator {
	return func(context.Context) ([]Asset, error) { return assets, nil }
}

// Concat runs every enumerator concurrently and concatenates their results in
// argument order. The first failure cancels the others and fails the whole
// enumeration; duplicate paths across the combined list also fail it.
func Concat(enumerators ...Enumerator) Enumerator {
	return func(ctx context.Context) ([]Asset, error) {
		parts := make([][]Asset, len(enumerators))
		g, gctx := errgroup.WithContext(ctx)
		for i, e := range enumerators {
			g.Go(func() error {
				assets, err := e(gctx)
				if err != nil {
					return err
				}
				parts[i] = assets
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, asEnumerationError(err)
		}
		var all []Asset
		for _, p := range parts {
			all = append(all, p...)
		}
		if err := CheckUnique(all); err != nil {
			return nil, err
		}
		return all, nil
	}
}

// CheckUnique verifies that no two assets share a LogicalPath.
func CheckUnique(assets []Asset) error {
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if a.path.IsZero() {
			return &EnumerationError{Kind: EnumerationInvalidPath}
		}
		key := a.path.String()
		if _, dup := seen[key]; dup {
			return &EnumerationError{Kind: EnumerationCollision, Path: key}
		}
		seen[key] = struct{}{}
	}
	return nil
}

func asEnumerationError(err error) error {
	var ee *EnumerationError
	if errors.As(err, &ee) {
		return err
	}
	return &EnumerationError{Kind: EnumerationFetch, Err: err}
}

// Pipeline wires enumeration, table construction and resolution.
type Pipeline struct {
	Enumerate Enumerator
	Finalize  FinalPathFunc
	Resolver  *Resolver
}

// Plan enumerates assets and builds their table without resolving anything.
func (p *Pipeline) Plan(ctx context.Context) ([]Asset, *Table, error) {
	assets, err := p.Enumerate(ctx)
	if err != nil {
		return nil, nil, asEnumerationError(err)
	}
	table, err := NewTable(Paths(assets), p.Finalize)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Target table built", logfields.Count(table.Len()))
	return assets, table, nil
}

// Run plans and resolves. A returned error is always an *EnumerationError;
// per-asset failures are only reported through the Report.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	assets, table, err := p.Plan(ctx)
	if err != nil {
		return nil, err
	}
	r := p.Resolver
	if r == nil {
		r = &Resolver{}
	}
	return r.Resolve(ctx, assets, table), nil
}
