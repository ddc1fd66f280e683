package ssg

import (
	"fmt"
)

// EnumerationErrorKind classifies why enumeration aborted.
type EnumerationErrorKind string

const (
	EnumerationFetch       EnumerationErrorKind = "fetch"        // data source or enumerator failure
	EnumerationCollision   EnumerationErrorKind = "collision"    // two assets declared the same LogicalPath
	EnumerationInvalidPath EnumerationErrorKind = "invalid_path" // an asset carries a zero LogicalPath
)

// EnumerationError aborts a build before any asset is resolved.
type EnumerationError struct {
	Kind EnumerationErrorKind
	Path string // offending path for collision / invalid_path
	Err  error
}

func (e *EnumerationError) Error() string {
	switch e.Kind {
	case EnumerationCollision:
		return fmt.Sprintf("enumeration: duplicate logical path %q", e.Path)
	case EnumerationInvalidPath:
		return fmt.Sprintf("enumeration: invalid logical path %q", e.Path)
	default:
		return fmt.Sprintf("enumeration: %v", e.Err)
	}
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// LookupError reports a request for a path that was never declared.
type LookupError struct {
	From string // empty for plain Get lookups
	To   string
}

func (e *LookupError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("target %q is not declared", e.To)
	}
	return fmt.Sprintf("target %q referenced from %q is not declared", e.To, e.From)
}

// ContentError attributes a content generation failure to one asset.
type ContentError struct {
	Path string
	Err  error
}

func (e *ContentError) Error() string { return fmt.Sprintf("asset %s: %v", e.Path, e.Err) }
func (e *ContentError) Unwrap() error { return e.Err }
