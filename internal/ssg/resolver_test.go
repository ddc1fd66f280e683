package ssg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	seen  map[string]int
	fails int
}

func (o *recordingObserver) ObserveAsset(p LogicalPath, _ SourceKind, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = map[string]int{}
	}
	o.seen[p.String()]++
	if err != nil {
		o.fails++
	}
}

func linkPage(to string) Source {
	return BytesWithTargets(func(_ context.Context, targets Targets) ([]byte, error) {
		rel, err := targets.Relative(to)
		if err != nil {
			return nil, err
		}
		return []byte("<a href=\"" + rel + "\">"), nil
	})
}

func mustTable(t *testing.T, assets []Asset) *Table {
	t.Helper()
	table, err := NewTable(Paths(assets), nil)
	require.NoError(t, err)
	return table
}

func TestResolver_BothSourceKinds(t *testing.T) {
	assets := []Asset{
		NewAsset(MustLogicalPath("index.css"), Static([]byte("body{}"))),
		NewAsset(MustLogicalPath("mobs/a.html"), linkPage("index.css")),
	}
	report := (&Resolver{}).Resolve(context.Background(), assets, mustTable(t, assets))

	require.Len(t, report.Outcomes, 2)
	require.NoError(t, report.Err())
	assert.Equal(t, SourceBytes, report.Outcomes[0].Kind)
	assert.Equal(t, "body{}", string(report.Outcomes[0].Content))
	assert.Equal(t, SourceTargets, report.Outcomes[1].Kind)
	assert.Equal(t, `<a href="../index.css">`, string(report.Outcomes[1].Content))
	assert.Equal(t, "mobs/a.html", report.Outcomes[1].FinalPath)
}

func TestResolver_CollectsAllFailures(t *testing.T) {
	boom := errors.New("malformed payload")
	assets := []Asset{
		NewAsset(MustLogicalPath("index.html"), linkPage("join.html")),
		NewAsset(MustLogicalPath("broken.html"), Bytes(func(context.Context) ([]byte, error) { return nil, boom })),
		NewAsset(MustLogicalPath("dangling.html"), linkPage("nowhere.html")),
		NewAsset(MustLogicalPath("join.html"), Static([]byte("join"))),
	}
	obs := &recordingObserver{}
	report := (&Resolver{Concurrency: 2, Observer: obs}).Resolve(context.Background(), assets, mustTable(t, assets))

	require.Len(t, report.Outcomes, 4)
	assert.Len(t, report.Succeeded(), 2)
	failed := report.Failed()
	require.Len(t, failed, 2)

	var ce *ContentError
	require.ErrorAs(t, failed[0].Err, &ce)
	assert.Equal(t, "broken.html", ce.Path)
	assert.ErrorIs(t, failed[0].Err, boom)

	var le *LookupError
	require.ErrorAs(t, failed[1].Err, &le)
	assert.Equal(t, "dangling.html", le.From)
	assert.Equal(t, "nowhere.html", le.To)

	assert.Error(t, report.Err())
	assert.Equal(t, 2, obs.fails)
	assert.Len(t, obs.seen, 4)
}

func TestResolver_EachSourceRunsOnce(t *testing.T) {
	var calls [20]atomic.Int32
	assets := make([]Asset, 0, len(calls))
	for i := range calls {
		assets = append(assets, NewAsset(MustLogicalPath(fmt.Sprintf("p%02d.html", i)), Bytes(func(context.Context) ([]byte, error) {
			calls[i].Add(1)
			return []byte{byte(i)}, nil
		})))
	}
	report := (&Resolver{Concurrency: 4}).Resolve(context.Background(), assets, mustTable(t, assets))
	require.NoError(t, report.Err())
	for i := range calls {
		assert.Equal(t, int32(1), calls[i].Load(), "asset %d", i)
	}
}

func TestResolver_OrderIndependent(t *testing.T) {
	build := func() []Asset {
		return []Asset{
			NewAsset(MustLogicalPath("index.html"), linkPage("mobs/b.html")),
			NewAsset(MustLogicalPath("mobs/a.html"), linkPage("index.html")),
			NewAsset(MustLogicalPath("mobs/b.html"), linkPage("mobs/a.html")),
			NewAsset(MustLogicalPath("mobs/c.html"), linkPage("gone.html")),
			NewAsset(MustLogicalPath("style.css"), Static([]byte("x"))),
		}
	}
	summarize := func(r *Report) map[string]string {
		out := map[string]string{}
		for _, o := range r.Outcomes {
			if o.Err != nil {
				out[o.Path.String()] = "ERR " + o.Err.Error()
				continue
			}
			out[o.Path.String()] = string(o.Content)
		}
		return out
	}

	base := build()
	want := summarize((&Resolver{Concurrency: 1}).Resolve(context.Background(), base, mustTable(t, base)))

	perms := [][]int{{4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}, {1, 4, 0, 3, 2}}
	for _, perm := range perms {
		src := build()
		permuted := make([]Asset, len(src))
		for i, j := range perm {
			permuted[i] = src[j]
		}
		for _, conc := range []int{1, 3, 8} {
			got := summarize((&Resolver{Concurrency: conc}).Resolve(context.Background(), permuted, mustTable(t, permuted)))
			assert.Equal(t, want, got, "perm=%v concurrency=%d", perm, conc)
		}
	}
}

func TestResolver_PanicBecomesContentError(t *testing.T) {
	assets := []Asset{
		NewAsset(MustLogicalPath("panics.html"), Bytes(func(context.Context) ([]byte, error) { panic("kaboom") })),
		NewAsset(MustLogicalPath("fine.html"), Static([]byte("ok"))),
	}
	report := (&Resolver{}).Resolve(context.Background(), assets, mustTable(t, assets))

	var ce *ContentError
	require.ErrorAs(t, report.Outcomes[0].Err, &ce)
	assert.Contains(t, ce.Error(), "kaboom")
	assert.True(t, report.Outcomes[1].OK())
}

func TestResolver_AssetMissingFromTable(t *testing.T) {
	declared := []Asset{NewAsset(MustLogicalPath("index.html"), Static(nil))}
	extra := append(declared, NewAsset(MustLogicalPath("late.html"), Static(nil)))

	report := (&Resolver{}).Resolve(context.Background(), extra, mustTable(t, declared))
	require.Len(t, report.Outcomes, 2)
	var le *LookupError
	require.ErrorAs(t, report.Outcomes[1].Err, &le)
	assert.Equal(t, "late.html", le.To)
}

func TestResolver_CanceledContextStillReportsEveryAsset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assets := []Asset{
		NewAsset(MustLogicalPath("a.html"), Static(nil)),
		NewAsset(MustLogicalPath("b.html"), Static(nil)),
	}
	report := (&Resolver{}).Resolve(ctx, assets, mustTable(t, assets))
	require.Len(t, report.Failed(), 2)
	assert.ErrorIs(t, report.Outcomes[0].Err, context.Canceled)
}

func TestReport_Lookup(t *testing.T) {
	assets := []Asset{NewAsset(MustLogicalPath("index.html"), Static([]byte("hi")))}
	report := (&Resolver{}).Resolve(context.Background(), assets, mustTable(t, assets))

	o, ok := report.Lookup("index.html")
	require.True(t, ok)
	assert.Equal(t, "hi", string(o.Content))
	_, ok = report.Lookup("missing.html")
	assert.False(t, ok)
}
