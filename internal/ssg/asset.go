package ssg

import (
	"context"
	"fmt"
)

// SourceKind discriminates the two content producers an Asset may carry.
type SourceKind int

const (
	// SourceBytes produces content without knowledge of other assets.
	SourceBytes SourceKind = iota + 1
	// SourceTargets produces content from the completed target table.
	SourceTargets
)

func (k SourceKind) String() string {
	switch k {
	case SourceBytes:
		return "bytes"
	case SourceTargets:
		return "bytes_with_targets"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// BytesFunc produces asset content independently of other assets.
type BytesFunc func(ctx context.Context) ([]byte, error)

// TargetsFunc produces asset content given the completed table, viewed from
// the asset being produced.
type TargetsFunc func(ctx context.Context, targets Targets) ([]byte, error)

// Source is a deferred content producer. Exactly one of its functions is set,
// selected by Kind.
type Source struct {
	kind    SourceKind
	bytes   BytesFunc
	targets TargetsFunc
}

// Bytes wraps a producer that needs no target table.
func Bytes(fn BytesFunc) Source { return Source{kind: SourceBytes, bytes: fn} }

// BytesWithTargets wraps a producer that runs after the target table exists.
func BytesWithTargets(fn TargetsFunc) Source { return Source{kind: SourceTargets, targets: fn} }

// Static wraps already known content.
func Static(b []byte) Source {
	return Bytes(func(context.Context) ([]byte, error) { return b, nil })
}

// Kind returns the variant tag.
func (s Source) Kind() SourceKind { return s.kind }

// Asset is one declared build output.
type Asset struct {
	path   LogicalPath
	source Source
}

// NewAsset declares an output at path whose content comes from source.
func NewAsset(path LogicalPath, source Source) Asset {
	return Asset{path: path, source: source}
}

// Path returns the logical identity of the asset.
func (a Asset) Path() LogicalPath { return a.path }

// Source returns the deferred content producer.
func (a Asset) Source() Source { return a.source }

// Paths lists the logical paths of assets in order.
func Paths(assets []Asset) []LogicalPath {
	out := make([]LogicalPath, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.path)
	}
	return out
}
