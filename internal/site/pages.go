package site

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"slices"
	"strings"

	"git.home.luguber.info/inful/mobsite/internal/calendar"
	"git.home.luguber.info/inful/mobsite/internal/markdown"
	"git.home.luguber.info/inful/mobsite/internal/mobs"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

const joinDefault = "join.md"

var proseClasses = NewClasses("prose", "prose-invert", "max-w-none")

type mobLink struct {
	Href     string
	Title    string
	Subtitle string
}

// indexPage renders the calendar of every mob, each event linking to its page.
func (s *Site) indexPage(records []mobs.Mob) ssg.Source {
	return ssg.BytesWithTargets(func(_ context.Context, targets ssg.Targets) ([]byte, error) {
		var events []calendar.Event
		links := make([]mobLink, 0, len(records))
		for _, m := range records {
			to, err := s.MobPath(m.ID)
			if err != nil {
				return nil, err
			}
			href, err := targets.RelativePath(to)
			if err != nil {
				return nil, err
			}
			links = append(links, mobLink{Href: href, Title: m.Title, Subtitle: m.Subtitle})
			events = append(events, mobEvents(m, href)...)
		}
		sortEvents(events)

		cal, err := calendar.Render(targets, "calendar", events)
		if err != nil {
			return nil, err
		}
		body, err := execute("index.tmpl", map[string]any{
			"Calendar": cal.HTML,
			"Mobs":     links,
		})
		if err != nil {
			return nil, err
		}
		return s.layout(targets, page{
			Title:       "Calendar",
			Content:     template.HTML(body),
			Stylesheets: []string{cal.Stylesheet},
		})
	})
}

// joinPage renders the informational page from markdown.
func (s *Site) joinPage() ssg.Source {
	return ssg.BytesWithTargets(func(_ context.Context, targets ssg.Targets) ([]byte, error) {
		src, err := s.joinMarkdown()
		if err != nil {
			return nil, err
		}
		html, err := markdown.ToHTML(src)
		if err != nil {
			return nil, err
		}
		body, err := execute("join.tmpl", map[string]any{
			"ProseClasses": proseClasses,
			"Body":         template.HTML(html),
		})
		if err != nil {
			return nil, err
		}
		return s.layout(targets, page{Title: "Join", Content: template.HTML(body)})
	})
}

func (s *Site) joinMarkdown() ([]byte, error) {
	if s.opts.JoinMarkdown != "" {
		data, err := os.ReadFile(s.opts.JoinMarkdown)
		if err != nil {
			return nil, fmt.Errorf("read join page: %w", err)
		}
		return data, nil
	}
	data, err := fs.ReadFile(s.files, joinDefault)
	if err != nil {
		return nil, fmt.Errorf("read join page: %w", err)
	}
	return data, nil
}

// mobPage renders one mob. m is captured by value.
func (s *Site) mobPage(m mobs.Mob) ssg.Source {
	return ssg.BytesWithTargets(func(_ context.Context, targets ssg.Targets) ([]byte, error) {
		events := mobEvents(m, "")
		sortEvents(events)
		cal, err := calendar.Render(targets, "calendar", events)
		if err != nil {
			return nil, err
		}
		copyHTML, err := markdown.ToHTML([]byte(m.Copy))
		if err != nil {
			return nil, err
		}
		body, err := execute("mob.tmpl", map[string]any{
			"Title":        m.Title,
			"Subtitle":     m.Subtitle,
			"Participants": m.Participants,
			"ProseClasses": proseClasses,
			"Copy":         template.HTML(copyHTML),
			"Calendar":     cal.HTML,
		})
		if err != nil {
			return nil, err
		}
		return s.layout(targets, page{
			Title:          m.Title,
			Content:        template.HTML(body),
			Stylesheets:    []string{cal.Stylesheet},
			ContentClasses: NewClasses("gap-6"),
		})
	})
}

func mobEvents(m mobs.Mob, href string) []calendar.Event {
	sessions := m.Sessions()
	events := make([]calendar.Event, 0, len(sessions))
	names := m.PublicNames()
	for _, sess := range sessions {
		events = append(events, calendar.Event{
			Title:        m.Title,
			Start:        sess.Start,
			End:          sess.End,
			URL:          href,
			Participants: slices.Clone(names),
		})
	}
	return events
}

func sortEvents(events []calendar.Event) {
	slices.SortStableFunc(events, func(a, b calendar.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
}
