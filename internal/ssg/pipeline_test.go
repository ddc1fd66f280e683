package ssg

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct{ id, title string }

func recordEnumerator(records []record, err error) Enumerator {
	return func(ctx context.Context) ([]Asset, error) {
		if err != nil {
			return nil, err
		}
		out := make([]Asset, 0, len(records))
		for _, r := range records {
			p, perr := NewLogicalPath("entities", r.id+".html")
			if perr != nil {
				return nil, perr
			}
			out = append(out, NewAsset(p, BytesWithTargets(func(_ context.Context, targets Targets) ([]byte, error) {
				home, err := targets.Relative("index.html")
				if err != nil {
					return nil, err
				}
				return []byte(fmt.Sprintf("%s -> %s", r.title, home)), nil
			})))
		}
		return out, nil
	}
}

func staticPages() Enumerator {
	return Fixed(
		NewAsset(MustLogicalPath("index.html"), Static([]byte("index"))),
		NewAsset(MustLogicalPath("join.html"), Static([]byte("join"))),
	)
}

func TestPipeline_Scenario(t *testing.T) {
	p := &Pipeline{Enumerate: Concat(staticPages(), recordEnumerator([]record{{"a", "Alpha"}, {"b", "Beta"}}, nil))}

	assets, table, err := p.Plan(context.Background())
	require.NoError(t, err)
	got := make([]string, 0, len(assets))
	for _, a := range assets {
		got = append(got, a.Path().String())
	}
	assert.Equal(t, []string{"index.html", "join.html", "entities/a.html", "entities/b.html"}, got)

	rel, err := table.Relative(MustLogicalPath("entities/a.html"), MustLogicalPath("index.html"))
	require.NoError(t, err)
	assert.Equal(t, "../index.html", rel)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	o, ok := report.Lookup("entities/b.html")
	require.True(t, ok)
	assert.Equal(t, "Beta -> ../index.html", string(o.Content))
}

func TestPipeline_NRecordsPlusKStatic(t *testing.T) {
	for _, n := range []int{0, 1, 7, 40} {
		records := make([]record, n)
		for i := range records {
			records[i] = record{id: fmt.Sprintf("r%d", i), title: "T"}
		}
		p := &Pipeline{Enumerate: Concat(staticPages(), recordEnumerator(records, nil))}
		assets, table, err := p.Plan(context.Background())
		require.NoError(t, err)
		assert.Len(t, assets, n+2)
		assert.Equal(t, n+2, table.Len())
	}
}

func TestPipeline_ZeroRecords(t *testing.T) {
	p := &Pipeline{Enumerate: Concat(staticPages(), recordEnumerator(nil, nil))}
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Outcomes, 2)
	assert.Empty(t, report.Failed())
}

func TestPipeline_DuplicateRecordsFailBeforeResolution(t *testing.T) {
	resolved := 0
	counting := func(ctx context.Context) ([]Asset, error) {
		return []Asset{
			NewAsset(MustLogicalPath("entities/a.html"), Bytes(func(context.Context) ([]byte, error) { resolved++; return nil, nil })),
			NewAsset(MustLogicalPath("entities/a.html"), Bytes(func(context.Context) ([]byte, error) { resolved++; return nil, nil })),
		}, nil
	}
	p := &Pipeline{Enumerate: Concat(staticPages(), counting)}

	report, err := p.Run(context.Background())
	assert.Nil(t, report)
	var ee *EnumerationError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EnumerationCollision, ee.Kind)
	assert.Equal(t, "entities/a.html", ee.Path)
	assert.Zero(t, resolved)
}

func TestPipeline_CollisionAcrossStaticAndDynamic(t *testing.T) {
	clash := Fixed(NewAsset(MustLogicalPath("join.html"), Static(nil)))
	_, err := (&Pipeline{Enumerate: Concat(staticPages(), clash)}).Run(context.Background())
	var ee *EnumerationError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EnumerationCollision, ee.Kind)
}

func TestPipeline_FetchFailureIsEnumerationError(t *testing.T) {
	fetchErr := errors.New("data source unreachable")
	_, err := (&Pipeline{Enumerate: Concat(staticPages(), recordEnumerator(nil, fetchErr))}).Run(context.Background())
	var ee *EnumerationError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EnumerationFetch, ee.Kind)
	assert.ErrorIs(t, err, fetchErr)
}

func TestConcat_FirstFailureCancelsSiblings(t *testing.T) {
	fetchErr := errors.New("boom")
	slow := func(ctx context.Context) ([]Asset, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	failing := func(context.Context) ([]Asset, error) { return nil, fetchErr }

	_, err := Concat(slow, failing)(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fetchErr)
}

func TestPipeline_UnvalidatedEnumeratorStillChecked(t *testing.T) {
	dup := func(context.Context) ([]Asset, error) {
		return []Asset{
			NewAsset(MustLogicalPath("x.html"), Static(nil)),
			NewAsset(MustLogicalPath("x.html"), Static(nil)),
		}, nil
	}
	_, _, err := (&Pipeline{Enumerate: dup}).Plan(context.Background())
	var ee *EnumerationError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, EnumerationCollision, ee.Kind)
}
