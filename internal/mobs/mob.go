package mobs

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mob is one record from the data source.
type Mob struct {
	ID           string
	Title        string
	Subtitle     string
	Participants []Participant
	Schedule     []Occurrence
	Copy         string // Markdown body
	Fingerprint  string
	File         string // Source file, slash separated
}

// Participant is a member of a mob. Hidden participants are counted but not named.
type Participant struct {
	Name      string
	SocialURL string
	Hidden    bool
}

// Occurrence is a scheduled session, optionally repeated weekly.
type Occurrence struct {
	Start    time.Time
	Duration time.Duration
	Repeat   int // Additional weekly sessions after Start
}

// Session is one concrete expanded meeting.
type Session struct {
	Start time.Time
	End   time.Time
}

const week = 7 * 24 * time.Hour

// Sessions expands the schedule into concrete sessions sorted by start, then end.
func (m Mob) Sessions() []Session {
	var out []Session
	for _, o := range m.Schedule {
		for i := 0; i <= o.Repeat; i++ {
			start := o.Start.Add(time.Duration(i) * week)
			out = append(out, Session{Start: start, End: start.Add(o.Duration)})
		}
	}
	slices.SortStableFunc(out, func(a, b Session) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})
	return out
}

// PublicNames returns the names of non-hidden participants in record order.
func (m Mob) PublicNames() []string {
	var names []string
	for _, p := range m.Participants {
		if !p.Hidden {
			names = append(names, p.Name)
		}
	}
	return names
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidID reports whether id can be used as a file name segment.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// TitleFromID derives a display title for records without one: "mob-of-the-week"
// becomes "Mob Of The Week".
func TitleFromID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func (m Mob) validate() error {
	if !ValidID(m.ID) {
		return fmt.Errorf("invalid mob id %q", m.ID)
	}
	for i, p := range m.Participants {
		if !p.Hidden && strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("participant %d: name is required unless hidden", i)
		}
	}
	for i, o := range m.Schedule {
		if o.Duration <= 0 {
			return fmt.Errorf("schedule %d: duration must be positive", i)
		}
		if o.Repeat < 0 {
			return fmt.Errorf("schedule %d: repeat cannot be negative", i)
		}
	}
	return nil
}
