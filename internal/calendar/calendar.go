// Package calendar embeds mob sessions into pages as a FullCalendar view.
//
// Events travel as a JSON payload inside a non-executable script element.
// The payload is produced by encoding/json, which escapes '<', '>', '&',
// U+2028 and U+2029, so it cannot close the element or break the document.
package calendar

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// Logical paths of the calendar's static files.
const (
	ScriptPath     = "fullcalendar.js"
	StylesheetPath = "fullcalendar.css"
)

// Event is one calendar entry.
type Event struct {
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	URL          string    `json:"url,omitempty"`
	Participants []string  `json:"participants"`
}

//go:embed assets/calendar.js
var initScript string

var fragment = template.Must(template.New("calendar").Parse(
	`<div id="{{.ID}}" class="{{.Classes}}"></div>
<script type="application/json" data-calendar-events="{{.ID}}">{{.Payload}}</script>
<script defer src="{{.Script}}"></script>
<script>{{.Init}}</script>
`))

// Payload serializes events deterministically: the same events in the same
// order always yield the same bytes. Times are written in UTC RFC 3339.
func Payload(events []Event) ([]byte, error) {
	normalized := make([]Event, len(events))
	for i, e := range events {
		e.Start = e.Start.UTC()
		e.End = e.End.UTC()
		if e.Participants == nil {
			e.Participants = []string{}
		}
		normalized[i] = e
	}
	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("encode calendar events: %w", err)
	}
	return out, nil
}

// Decode parses a payload produced by Payload.
func Decode(payload []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, fmt.Errorf("decode calendar events: %w", err)
	}
	return events, nil
}

// Rendered is a calendar fragment plus the stylesheet it needs in the page head.
type Rendered struct {
	HTML       template.HTML
	Stylesheet string
}

// Render builds the calendar fragment for the page bound to targets. id must
// be unique within the page.
func Render(targets ssg.Targets, id string, events []Event) (Rendered, error) {
	script, err := targets.Relative(ScriptPath)
	if err != nil {
		return Rendered{}, err
	}
	stylesheet, err := targets.Relative(StylesheetPath)
	if err != nil {
		return Rendered{}, err
	}
	payload, err := Payload(events)
	if err != nil {
		return Rendered{}, err
	}

	var buf bytes.Buffer
	err = fragment.Execute(&buf, map[string]any{
		"ID":      id,
		"Classes": "[--fc-page-bg-color:transparent]",
		"Payload": template.JS(payload),
		"Script":  script,
		"Init":    template.JS(initScript),
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("render calendar: %w", err)
	}
	return Rendered{HTML: template.HTML(buf.String()), Stylesheet: stylesheet}, nil
}
