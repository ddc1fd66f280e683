package site

import "strings"

// Classes is an ordered set of CSS class names.
type Classes []string

// NewClasses returns the classes in order, dropping blanks and repeats.
func NewClasses(names ...string) Classes {
	return Classes(nil).Add(names...)
}

// Add returns c followed by names that are not already present.
func (c Classes) Add(names ...string) Classes {
	out := make(Classes, 0, len(c)+len(names))
	seen := make(map[string]struct{}, len(c)+len(names))
	for _, n := range append(append([]string(nil), c...), names...) {
		for _, f := range strings.Fields(n) {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// Merge returns the union of c and other, c's classes first.
func (c Classes) Merge(other Classes) Classes {
	return c.Add(other...)
}

// String renders the class attribute value.
func (c Classes) String() string {
	return strings.Join(c, " ")
}
