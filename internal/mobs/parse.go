package mobs

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// front matter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml front matter start delimiter found but closing delimiter is missing")

type recordYAML struct {
	ID           string            `yaml:"id"`
	Title        string            `yaml:"title"`
	Subtitle     string            `yaml:"subtitle"`
	Participants []participantYAML `yaml:"participants"`
	Schedule     []occurrenceYAML  `yaml:"schedule"`
}

type participantYAML struct {
	Name   string `yaml:"name"`
	Social string `yaml:"social"`
	Hidden bool   `yaml:"hidden"`
}

type occurrenceYAML struct {
	Start    string `yaml:"start"`
	Duration string `yaml:"duration"`
	Repeat   int    `yaml:"repeat"`
}

// Parse decodes one record file. The id defaults to the file name without
// its extension and the title to the id in title case.
func Parse(file string, content []byte) (Mob, error) {
	front, body, err := splitFrontMatter(content)
	if err != nil {
		return Mob{}, fmt.Errorf("%s: %w", file, err)
	}

	var rec recordYAML
	if err := yaml.Unmarshal(front, &rec); err != nil {
		return Mob{}, fmt.Errorf("%s: front matter: %w", file, err)
	}

	m := Mob{
		ID:       strings.TrimSpace(rec.ID),
		Title:    strings.TrimSpace(rec.Title),
		Subtitle: strings.TrimSpace(rec.Subtitle),
		Copy:     string(body),
		File:     file,
	}
	if m.ID == "" {
		m.ID = strings.TrimSuffix(path.Base(file), path.Ext(file))
	}
	if m.Title == "" {
		m.Title = TitleFromID(m.ID)
	}
	for _, p := range rec.Participants {
		m.Participants = append(m.Participants, Participant{Name: strings.TrimSpace(p.Name), SocialURL: p.Social, Hidden: p.Hidden})
	}
	for i, o := range rec.Schedule {
		start, err := time.Parse(time.RFC3339, o.Start)
		if err != nil {
			return Mob{}, fmt.Errorf("%s: schedule %d: start: %w", file, i, err)
		}
		d, err := time.ParseDuration(o.Duration)
		if err != nil {
			return Mob{}, fmt.Errorf("%s: schedule %d: duration: %w", file, i, err)
		}
		m.Schedule = append(m.Schedule, Occurrence{Start: start.UTC(), Duration: d, Repeat: o.Repeat})
	}
	if err := m.validate(); err != nil {
		return Mob{}, fmt.Errorf("%s: %w", file, err)
	}

	fp, declared, err := fingerprint(front, body)
	if err != nil {
		return Mob{}, fmt.Errorf("%s: fingerprint: %w", file, err)
	}
	if declared != "" && declared != fp {
		slog.Warn("Mob record fingerprint is stale", logfields.RecordID(m.ID), logfields.Path(file))
	}
	m.Fingerprint = fp
	return m, nil
}

// splitFrontMatter separates `---` delimited YAML from the Markdown body.
// Documents without front matter are all body.
func splitFrontMatter(content []byte) (front, body []byte, err error) {
	nl := "\n"
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		nl = "\r\n"
	}
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, nil
	}
	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], nil
	}
	closing := []byte(nl + "---" + nl)
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		if bytes.HasSuffix(rest, []byte(nl+"---")) {
			return rest[:len(rest)-3], nil, nil
		}
		return nil, nil, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(nl)], rest[idx+len(closing):], nil
}

// fingerprint hashes the front matter (minus any declared fingerprint) and
// body with mdfp. It also returns the declared fingerprint, if any.
func fingerprint(front, body []byte) (fp, declared string, err error) {
	fields := map[string]any{}
	if len(front) > 0 {
		if err := yaml.Unmarshal(front, &fields); err != nil {
			return "", "", err
		}
	}
	if v, ok := fields[mdfp.FingerprintField].(string); ok {
		declared = v
	}
	delete(fields, mdfp.FingerprintField)

	canonical := ""
	if len(fields) > 0 {
		out, err := yaml.Marshal(fields)
		if err != nil {
			return "", "", err
		}
		canonical = strings.TrimSuffix(string(out), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(canonical, string(body)), declared, nil
}
