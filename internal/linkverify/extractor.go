package linkverify

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
)

// Link is a reference found in a rendered page.
type Link struct {
	URL       string
	Tag       string // a, img, script, link
	Attribute string // href or src
}

// linkAttrs maps the elements that reference other assets to their attribute.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"source": "src",
}

// ExtractLinks returns every href/src reference of an HTML document in document order.
func ExtractLinks(content []byte) ([]Link, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryContent, "failed to parse HTML").Build()
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := linkAttrs[n.Data]; ok {
				if v := getAttr(n, attr); v != "" {
					links = append(links, Link{URL: v, Tag: n.Data, Attribute: attr})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// IsInternal reports whether a link points at another asset of the site:
// a relative or root-relative URL without scheme or host.
func IsInternal(link string) bool {
	if link == "" || strings.HasPrefix(link, "#") {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.Path != ""
}
