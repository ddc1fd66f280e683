package linkverify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

func outcome(p, final, content string) ssg.Outcome {
	return ssg.Outcome{Path: ssg.MustLogicalPath(p), FinalPath: final, Content: []byte(content)}
}

func TestExtractLinks(t *testing.T) {
	links, err := ExtractLinks([]byte(`<html><head>
<link rel="stylesheet" href="index.css?v=1">
<script defer src="fullcalendar.js"></script>
<script>var x = "<a href='nope'>";</script>
</head><body>
<a href="join.html">Join</a><a>empty</a>
<img src="logo.svg" alt="logo">
</body></html>`))
	require.NoError(t, err)

	var urls []string
	for _, l := range links {
		urls = append(urls, l.Tag+":"+l.URL)
	}
	assert.Equal(t, []string{"link:index.css?v=1", "script:fullcalendar.js", "a:join.html", "img:logo.svg"}, urls)
}

func TestIsInternal(t *testing.T) {
	for link, want := range map[string]bool{
		"index.html":               true,
		"../index.css?v=12":        true,
		"/fonts/a.woff2":           true,
		"#calendar":                false,
		"":                         false,
		"https://example.com/x":    false,
		"//cdn.example.com/x.js":   false,
		"mailto:someone@example":   false,
		"?v=1":                     false,
		"javascript:void(0)":       false,
	} {
		assert.Equal(t, want, IsInternal(link), link)
	}
}

func TestVerify(t *testing.T) {
	report := &ssg.Report{Outcomes: []ssg.Outcome{
		outcome("index.html", "site/index.html",
			`<a href="mobs/a.html">A</a><a href="https://example.com">ext</a><link href="index.css?v=3">`),
		outcome("mobs/a.html", "site/mobs/a.html",
			`<a href="../index.html">home</a><a href="../missing.html">x</a><img src="../logo.svg">`),
		outcome("index.css", "site/index.css", `a{}`),
		{Path: ssg.MustLogicalPath("logo.svg"), FinalPath: "site/logo.svg", Err: errors.New("missing")},
	}}

	res := Verify(report)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 5, res.Checked)
	assert.False(t, res.OK())
	assert.Equal(t, []BrokenLink{
		{Page: "mobs/a.html", FinalPath: "site/mobs/a.html", URL: "../missing.html", Target: "site/missing.html", Reason: ReasonUndeclared},
		{Page: "mobs/a.html", FinalPath: "site/mobs/a.html", URL: "../logo.svg", Target: "site/logo.svg", Reason: ReasonTargetFailed},
	}, res.Broken)
}

func TestVerifyLinkEscapingRoot(t *testing.T) {
	report := &ssg.Report{Outcomes: []ssg.Outcome{
		outcome("index.html", "index.html", `<a href="../../index.html">up</a>`),
	}}
	res := Verify(report)
	require.Len(t, res.Broken, 1)
	assert.Equal(t, ReasonUndeclared, res.Broken[0].Reason)
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "MOBSITE_BUILDS", StreamName("mobsite.builds"))
}
