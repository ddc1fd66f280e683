package ssg

import (
	"fmt"
	"strings"
)

// LogicalPath identifies an asset relative to the site root as an ordered
// list of path segments. The zero value is invalid.
type LogicalPath struct {
	segments []string
}

// NewLogicalPath builds a path from individual segments.
func NewLogicalPath(segments ...string) (LogicalPath, error) {
	if len(segments) == 0 {
		return LogicalPath{}, fmt.Errorf("logical path has no segments")
	}
	for _, s := range segments {
		switch {
		case s == "":
			return LogicalPath{}, fmt.Errorf("logical path %q has an empty segment", strings.Join(segments, "/"))
		case s == "." || s == "..":
			return LogicalPath{}, fmt.Errorf("logical path %q has a relative segment", strings.Join(segments, "/"))
		case strings.ContainsAny(s, "/\\"):
			return LogicalPath{}, fmt.Errorf("logical path segment %q contains a separator", s)
		}
	}
	return LogicalPath{segments: append([]string(nil), segments...)}, nil
}

// ParseLogicalPath splits a slash separated path such as "mobs/agda.html".
func ParseLogicalPath(p string) (LogicalPath, error) {
	return NewLogicalPath(strings.Split(p, "/")...)
}

// MustLogicalPath is ParseLogicalPath for compile-time constants.
func MustLogicalPath(p string) LogicalPath {
	lp, err := ParseLogicalPath(p)
	if err != nil {
		panic(err)
	}
	return lp
}

// IsZero reports whether p was never initialized.
func (p LogicalPath) IsZero() bool { return len(p.segments) == 0 }

// Base returns the last segment.
func (p LogicalPath) Base() string {
	if p.IsZero() {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

func (p LogicalPath) String() string { return strings.Join(p.segments, "/") }
