// Package linkverify checks that every internal link of the rendered pages
// reaches an asset that was declared and built.
//
// Verification runs against the resolution report rather than the files on
// disk, so it can reject a build before anything is promoted. Broken links can
// be published to NATS JetStream for downstream consumers.
package linkverify

import (
	"log/slog"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// Reasons a link is reported broken.
const (
	ReasonUndeclared   = "undeclared" // no asset has this final path
	ReasonTargetFailed = "target_failed"
	ReasonUnparsable   = "unparsable"
)

// BrokenLink is an internal link that does not reach a built asset.
type BrokenLink struct {
	Page      string `json:"page"`       // logical path of the page holding the link
	FinalPath string `json:"final_path"` // final path of that page
	URL       string `json:"url"`
	Target    string `json:"target,omitempty"` // final path the link resolves to
	Reason    string `json:"reason"`
}

// Result summarizes one verification run.
type Result struct {
	Pages   int
	Checked int
	Broken  []BrokenLink
}

// OK reports whether no broken link was found.
func (r Result) OK() bool { return len(r.Broken) == 0 }

// Verify checks every internal link of every successfully built HTML page in report.
func Verify(report *ssg.Report) Result {
	status := make(map[string]bool, len(report.Outcomes))
	for _, o := range report.Outcomes {
		if o.FinalPath != "" {
			status[o.FinalPath] = o.OK()
		}
	}

	var res Result
	for _, o := range report.Outcomes {
		if !o.OK() || !isHTML(o.FinalPath) {
			continue
		}
		res.Pages++
		links, err := ExtractLinks(o.Content)
		if err != nil {
			res.Broken = append(res.Broken, BrokenLink{Page: o.Path.String(), FinalPath: o.FinalPath, Reason: ReasonUnparsable})
			continue
		}
		for _, l := range links {
			if !IsInternal(l.URL) {
				continue
			}
			res.Checked++
			if b, broken := check(o, l.URL, status); broken {
				res.Broken = append(res.Broken, b)
			}
		}
	}

	for _, b := range res.Broken {
		slog.Warn("Broken internal link",
			logfields.Asset(b.Page),
			logfields.URL(b.URL),
			slog.String("reason", b.Reason))
	}
	return res
}

func check(o ssg.Outcome, link string, status map[string]bool) (BrokenLink, bool) {
	broken := BrokenLink{Page: o.Path.String(), FinalPath: o.FinalPath, URL: link}
	u, err := url.Parse(link)
	if err != nil {
		broken.Reason = ReasonUnparsable
		return broken, true
	}

	target := resolve(o.FinalPath, u.Path)
	broken.Target = target
	ok, declared := status[target]
	switch {
	case !declared:
		broken.Reason = ReasonUndeclared
		return broken, true
	case !ok:
		broken.Reason = ReasonTargetFailed
		return broken, true
	}
	return BrokenLink{}, false
}

// resolve maps a link found on the page at from onto a final path.
func resolve(from, link string) string {
	if strings.HasPrefix(link, "/") {
		return strings.TrimPrefix(path.Clean(link), "/")
	}
	return strings.TrimPrefix(path.Join(path.Dir(from), link), "/")
}

func isHTML(p string) bool {
	return strings.HasSuffix(p, ".html")
}
