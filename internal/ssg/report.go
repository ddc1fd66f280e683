package ssg

import (
	"errors"
	"time"
)

// Outcome is the result of resolving one asset.
type Outcome struct {
	Path      LogicalPath
	FinalPath string
	Kind      SourceKind
	Content   []byte
	Err       error
	Duration  time.Duration
}

// OK reports whether the asset produced content.
func (o Outcome) OK() bool { return o.Err == nil }

// Report collects every asset outcome of one resolution, in enumeration order.
type Report struct {
	Outcomes []Outcome
	Table    *Table
}

// Succeeded returns the outcomes that produced content.
func (r *Report) Succeeded() []Outcome { return r.filter(true) }

// Failed returns the outcomes that failed.
func (r *Report) Failed() []Outcome { return r.filter(false) }

func (r *Report) filter(ok bool) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.OK() == ok {
			out = append(out, o)
		}
	}
	return out
}

// Lookup returns the outcome for a logical path.
func (r *Report) Lookup(p string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Path.String() == p {
			return o, true
		}
	}
	return Outcome{}, false
}

// Err joins every asset failure, or returns nil when all assets succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
