package ssg

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// FinalPathFunc derives an asset's final output path from its logical path.
// Implementations must be pure so the table is reproducible.
type FinalPathFunc func(LogicalPath) string

// IdentityFinalPath maps every logical path onto itself.
func IdentityFinalPath(p LogicalPath) string { return p.String() }

// PrefixFinalPath places every asset below root. An empty root is identity.
func PrefixFinalPath(root string) FinalPathFunc {
	root = strings.Trim(path.Clean("/"+root), "/")
	if root == "" {
		return IdentityFinalPath
	}
	return func(p LogicalPath) string { return root + "/" + p.String() }
}

// Table maps every declared LogicalPath to its final path. It is immutable
// after NewTable returns and safe for concurrent reads.
type Table struct {
	final map[string]string
	order []string
}

// NewTable builds the table for the complete asset path list. A duplicate or
// zero path fails the whole table, as does a final path that is shared by two
// assets or does not name a file below the output root.
func NewTable(paths []LogicalPath, finalize FinalPathFunc) (*Table, error) {
	if finalize == nil {
		finalize = IdentityFinalPath
	}
	t := &Table{final: make(map[string]string, len(paths)), order: make([]string, 0, len(paths))}
	owners := make(map[string]string, len(paths))
	for _, p := range paths {
		if p.IsZero() {
			return nil, &EnumerationError{Kind: EnumerationInvalidPath, Path: p.String()}
		}
		key := p.String()
		if _, dup := t.final[key]; dup {
			return nil, &EnumerationError{Kind: EnumerationCollision, Path: key}
		}
		final := path.Clean(finalize(p))
		if !localFinal(final) {
			return nil, &EnumerationError{Kind: EnumerationInvalidPath, Path: key,
				Err: fmt.Errorf("final path %q is outside the output root", final)}
		}
		if owner, dup := owners[final]; dup {
			return nil, &EnumerationError{Kind: EnumerationCollision, Path: final,
				Err: fmt.Errorf("%q and %q share final path %q", owner, key, final)}
		}
		owners[final] = key
		t.final[key] = final
		t.order = append(t.order, key)
	}
	sort.Strings(t.order)
	return t, nil
}

// Len returns the number of declared assets.
func (t *Table) Len() int { return len(t.order) }

// Paths returns the declared logical paths in lexical order.
func (t *Table) Paths() []string { return append([]string(nil), t.order...) }

// Get returns the final path of a declared asset.
func (t *Table) Get(p LogicalPath) (string, error) {
	final, ok := t.final[p.String()]
	if !ok {
		return "", &LookupError{To: p.String()}
	}
	return final, nil
}

// Relative returns the path that, followed from the directory of from's final
// output, reaches to's final output.
func (t *Table) Relative(from, to LogicalPath) (string, error) {
	fromFinal, ok := t.final[from.String()]
	if !ok {
		return "", &LookupError{To: from.String()}
	}
	toFinal, ok := t.final[to.String()]
	if !ok {
		return "", &LookupError{From: from.String(), To: to.String()}
	}
	return relativeFinal(fromFinal, toFinal), nil
}

// For returns a view of the table from the asset at current.
func (t *Table) For(current LogicalPath) Targets {
	return Targets{table: t, current: current}
}

// localFinal reports whether a cleaned final path names a file below the
// output root.
func localFinal(final string) bool {
	switch {
	case final == "." || final == "/" || final == "..":
		return false
	case strings.HasPrefix(final, "/"), strings.HasPrefix(final, "../"):
		return false
	}
	return true
}

func relativeFinal(from, to string) string {
	fromDir := splitClean(path.Dir(from))
	toSegs := splitClean(to)
	toDir := toSegs[:len(toSegs)-1]

	common := 0
	for common < len(fromDir) && common < len(toDir) && fromDir[common] == toDir[common] {
		common++
	}
	rel := make([]string, 0, len(fromDir)-common+len(toSegs)-common)
	for range fromDir[common:] {
		rel = append(rel, "..")
	}
	rel = append(rel, toSegs[common:]...)
	return strings.Join(rel, "/")
}

func splitClean(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Targets is the read-only table handed to BytesWithTargets sources, bound to
// the asset being produced.
type Targets struct {
	table   *Table
	current LogicalPath
}

// Current returns the logical path of the asset being produced.
func (t Targets) Current() LogicalPath { return t.current }

// Table returns the underlying table.
func (t Targets) Table() *Table { return t.table }

// Get returns the final path of another asset.
func (t Targets) Get(to LogicalPath) (string, error) { return t.table.Get(to) }

// RelativePath returns the link from the current asset to another.
func (t Targets) RelativePath(to LogicalPath) (string, error) {
	return t.table.Relative(t.current, to)
}

// Relative parses a slash separated logical path and returns the link from
// the current asset to it.
func (t Targets) Relative(to string) (string, error) {
	lp, err := ParseLogicalPath(to)
	if err != nil {
		return "", &LookupError{From: t.current.String(), To: to}
	}
	return t.RelativePath(lp)
}
