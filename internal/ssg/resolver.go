package ssg

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// Observer receives one notification per resolved asset. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveAsset(path LogicalPath, kind SourceKind, d time.Duration, err error)
}

// Resolver invokes every asset's Source exactly once and collects outcomes.
type Resolver struct {
	// Concurrency bounds the number of sources running at once; <=0 uses GOMAXPROCS.
	Concurrency int
	Observer    Observer
}

// Resolve runs all sources against table. It never stops early: every asset
// appears in the report, in the order of assets, with either content or an error.
func (r *Resolver) Resolve(ctx context.Context, assets []Asset, table *Table) *Report {
	limit := r.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	outcomes := make([]Outcome, len(assets))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range assets {
		g.Go(func() error {
			outcomes[i] = r.resolveOne(ctx, assets[i], table)
			return nil
		})
	}
	_ = g.Wait()

	return &Report{Outcomes: outcomes, Table: table}
}

func (r *Resolver) resolveOne(ctx context.Context, a Asset, table *Table) (out Outcome) {
	out = Outcome{Path: a.path, Kind: a.source.kind}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			out.Content = nil
			out.Err = &ContentError{Path: a.path.String(), Err: fmt.Errorf("panic: %v", rec)}
		}
		out.Duration = time.Since(start)
		if r.Observer != nil {
			r.Observer.ObserveAsset(a.path, a.source.kind, out.Duration, out.Err)
		}
		if out.Err != nil {
			slog.Warn("Asset failed", logfields.Asset(a.path.String()), logfields.Error(out.Err))
		} else {
			slog.Debug("Asset resolved", logfields.Asset(a.path.String()), logfields.FinalPath(out.FinalPath), slog.Int("bytes", len(out.Content)))
		}
	}()

	final, err := table.Get(a.path)
	if err != nil {
		out.Err = &ContentError{Path: a.path.String(), Err: err}
		return out
	}
	out.FinalPath = final

	if err := ctx.Err(); err != nil {
		out.Err = &ContentError{Path: a.path.String(), Err: err}
		return out
	}

	var content []byte
	switch a.source.kind {
	case SourceBytes:
		content, err = a.source.bytes(ctx)
	case SourceTargets:
		content, err = a.source.targets(ctx, table.For(a.path))
	default:
		err = fmt.Errorf("asset has no content source")
	}
	if err != nil {
		out.Err = &ContentError{Path: a.path.String(), Err: err}
		return out
	}
	out.Content = content
	return out
}
