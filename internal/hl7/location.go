package hl7

import (
	"strconv"
	"strings"
)

// PathElement is one step of a Location.
type PathElement struct {
	Name       string
	Repetition int
}

// Location identifies a structure by its path from the message root.
// Locations are values; Child never modifies the receiver.
type Location struct {
	path []PathElement
}

// Child returns the location of the rep-th child called name.
func (l Location) Child(name string, rep int) Location {
	path := make([]PathElement, len(l.path), len(l.path)+1)
	copy(path, l.path)
	return Location{path: append(path, PathElement{Name: name, Repetition: rep})}
}

// Path returns a copy of the path elements, outermost first.
func (l Location) Path() []PathElement {
	out := make([]PathElement, len(l.path))
	copy(out, l.path)
	return out
}

// Depth is the number of path elements. The root has depth 0.
func (l Location) Depth() int { return len(l.path) }

// Last returns the innermost path element.
func (l Location) Last() (PathElement, bool) {
	if len(l.path) == 0 {
		return PathElement{}, false
	}
	return l.path[len(l.path)-1], true
}

// String renders the location as /GROUP(0)/SEG(1).
func (l Location) String() string {
	if len(l.path) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, e := range l.path {
		sb.WriteByte('/')
		sb.WriteString(e.Name)
		sb.WriteByte('(')
		sb.WriteString(strconv.Itoa(e.Repetition))
		sb.WriteByte(')')
	}
	return sb.String()
}

// LocationOf computes the location of s by walking up to its root.
func LocationOf(s Structure) Location {
	var rev []PathElement
	for cur := s; cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		rev = append(rev, PathElement{Name: cur.Name(), Repetition: cur.Repetition()})
	}
	path := make([]PathElement, len(rev))
	for i, e := range rev {
		path[len(rev)-1-i] = e
	}
	return Location{path: path}
}
