package site

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobsite/internal/calendar"
	"git.home.luguber.info/inful/mobsite/internal/mobs"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

func testRecords() mobs.Static {
	start := time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)
	return mobs.Static{
		{
			ID:    "a",
			Title: "Alpha",
			Participants: []mobs.Participant{
				{Name: "Ada", SocialURL: "https://example.com/ada"},
				{Hidden: true},
			},
			Schedule: []mobs.Occurrence{{Start: start, Duration: 2 * time.Hour, Repeat: 1}},
			Copy:     "We write **Rust**.",
		},
		{ID: "b", Title: "Beta", Subtitle: "Evenings"},
	}
}

func testSite(opts Options) *Site {
	if opts.Name == "" {
		opts.Name = "Mobs"
	}
	opts.Version = "42"
	return New(opts)
}

func build(t *testing.T, s *Site, src mobs.Source, root string) *ssg.Report {
	t.Helper()
	p := ssg.Pipeline{
		Enumerate: s.Enumerator(src, nil),
		Finalize:  ssg.PrefixFinalPath(root),
		Resolver:  &ssg.Resolver{Concurrency: 4},
	}
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	return report
}

func content(t *testing.T, r *ssg.Report, p string) string {
	t.Helper()
	o, ok := r.Lookup(p)
	require.True(t, ok, "missing %s", p)
	require.NoError(t, o.Err)
	return string(o.Content)
}

func TestPagesEnumeratesFixedPagesThenRecords(t *testing.T) {
	s := testSite(Options{EntityDir: "entities"})

	assets, err := s.Pages(testRecords(), nil)(context.Background())
	require.NoError(t, err)

	got := make([]string, 0, len(assets))
	for _, a := range assets {
		got = append(got, a.Path().String())
	}
	assert.Equal(t, []string{"index.html", "join.html", "entities/a.html", "entities/b.html"}, got)

	table, err := ssg.NewTable(ssg.Paths(assets), nil)
	require.NoError(t, err)
	rel, err := table.Relative(ssg.MustLogicalPath("entities/a.html"), ssg.MustLogicalPath("index.html"))
	require.NoError(t, err)
	assert.Equal(t, "../index.html", rel)
}

func TestPagesWithZeroRecords(t *testing.T) {
	s := testSite(Options{})
	var seen []mobs.Mob
	called := false

	assets, err := s.Enumerator(mobs.Static{}, func(m []mobs.Mob) { called, seen = true, m })(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, seen)
	assert.Len(t, assets, 2+len(s.StaticFiles()))

	table, err := ssg.NewTable(ssg.Paths(assets), nil)
	require.NoError(t, err)
	report := (&ssg.Resolver{}).Resolve(context.Background(), assets, table)
	assert.Empty(t, report.Failed())
}

func TestDuplicateRecordIDsFailEnumeration(t *testing.T) {
	s := testSite(Options{})
	src := mobs.Static{{ID: "a", Title: "One"}, {ID: "a", Title: "Two"}}

	p := ssg.Pipeline{Enumerate: s.Enumerator(src, nil)}
	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)

	var ee *ssg.EnumerationError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ssg.EnumerationCollision, ee.Kind)
	assert.Equal(t, "mobs/a.html", ee.Path)
}

func TestFetchFailureIsEnumerationError(t *testing.T) {
	s := testSite(Options{})
	boom := errors.New("repository unreachable")
	src := mobs.SourceFunc(func(context.Context) ([]mobs.Mob, error) { return nil, boom })

	_, err := s.Enumerator(src, nil)(context.Background())
	var ee *ssg.EnumerationError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ssg.EnumerationFetch, ee.Kind)
	assert.ErrorIs(t, err, boom)
}

func TestIndexLinksToMobPagesRelatively(t *testing.T) {
	s := testSite(Options{ZulipURL: "https://zulip.example"})
	report := build(t, s, testRecords(), "site")
	require.Empty(t, report.Failed())

	index := content(t, report, "index.html")
	assert.Contains(t, index, `<title>Calendar; Mobs</title>`)
	assert.Contains(t, index, `href="mobs/a.html"`)
	assert.Contains(t, index, `href="index.css?v=42"`)
	assert.Contains(t, index, `href="fullcalendar.css"`)
	assert.Contains(t, index, `src="zulip_logo.svg"`)
	assert.NotContains(t, index, "twitter_logo.svg")
	assert.Contains(t, index, "Beta</a>: Evenings")

	o, _ := report.Lookup("index.html")
	assert.Equal(t, "site/index.html", o.FinalPath)
}

func TestMobPage(t *testing.T) {
	s := testSite(Options{Fonts: []string{"Inter.woff2"}, Files: fstest.MapFS{
		"fonts/Inter.woff2": {Data: []byte("font")},
	}})
	report := build(t, s, testRecords(), "")
	require.Empty(t, report.Failed())

	page := content(t, report, "mobs/a.html")
	assert.Contains(t, page, `<title>Alpha; Mobs</title>`)
	assert.Contains(t, page, `href="../index.css?v=42"`)
	assert.Contains(t, page, `href="../join.html"`)
	assert.Contains(t, page, `href="https://example.com/ada">Ada</a>`)
	assert.Contains(t, page, "(Anonymous participant)")
	assert.Contains(t, page, "<strong>Rust</strong>")
	assert.Contains(t, page, `src="../fullcalendar.js"`)
	assert.Contains(t, page, `url('../fonts/Inter.woff2') format('woff2')`)
	assert.Contains(t, page, `<link rel="preload" href="../fonts/Inter.woff2" as="font" crossorigin>`)
	assert.Contains(t, page, `font-[Inter]`)
	assert.Contains(t, page, `<main class="gap-6 grow flex flex-col justify-center">`)
	assert.Contains(t, content(t, report, "index.html"), `<main class="grow flex flex-col justify-center">`)

	start := strings.Index(page, `data-calendar-events="calendar">`)
	require.NotEqual(t, -1, start)
	payload := page[start+len(`data-calendar-events="calendar">`):]
	payload = payload[:strings.Index(payload, "</script>")]
	events, err := calendar.Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"Ada"}, events[0].Participants)
	assert.Empty(t, events[0].URL)
	assert.Equal(t, 7*24*time.Hour, events[1].Start.Sub(events[0].Start))
}

func TestMissingStaticFileFailsOnlyThatAsset(t *testing.T) {
	s := testSite(Options{Fonts: []string{"Missing.ttf"}})
	report := build(t, s, testRecords(), "")

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "fonts/Missing.ttf", failed[0].Path.String())
	var ce *ssg.ContentError
	assert.ErrorAs(t, failed[0].Err, &ce)

	assert.Contains(t, content(t, report, "index.html"), `format('truetype')`)
}

func TestAssetsOverrideEmbeddedDefaults(t *testing.T) {
	s := testSite(Options{Files: fstest.MapFS{
		"index.css": {Data: []byte("body{}")},
		"join.md":   {Data: []byte("# Come along")},
	}})
	report := build(t, s, mobs.Static{}, "")

	assert.Equal(t, "body{}", content(t, report, "index.css"))
	assert.NotEmpty(t, content(t, report, "zulip_logo.svg"))
	assert.Contains(t, content(t, report, "join.html"), `<h1 id="come-along">Come along</h1>`)
}

func TestDefaultJoinPageLinksResolve(t *testing.T) {
	report := build(t, testSite(Options{}), mobs.Static{}, "")
	join := content(t, report, "join.html")
	assert.Contains(t, join, `<title>Join; Mobs</title>`)
	assert.Contains(t, join, `href="index.html"`)
}

func TestFontFormat(t *testing.T) {
	for file, want := range map[string]string{
		"a.woff2": "woff2",
		"a.WOFF":  "woff",
		"a.ttf":   "truetype",
		"a.otf":   "opentype",
	} {
		assert.Equal(t, want, fontFormat(file), file)
	}
	assert.Equal(t, "Inter-Bold", fontFamily("Inter-Bold.woff2"))
}

func TestClasses(t *testing.T) {
	c := NewClasses("flex gap-1", "", "flex")
	assert.Equal(t, "flex gap-1", c.String())
	assert.Equal(t, "flex gap-1 grow", c.Merge(NewClasses("grow", "gap-1")).String())
	assert.Equal(t, "flex gap-1", c.String())
}
