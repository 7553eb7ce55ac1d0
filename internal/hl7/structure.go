package hl7

import (
	"strings"
)

// Structure is a node of a message tree: either a *Group or a *Segment.
// The interface is sealed; no other implementations exist.
type Structure interface {
	// Name is the segment ID or group name.
	Name() string
	// Repetition is the index of this structure among same-named siblings.
	Repetition() int
	// Parent is the enclosing group, nil for a message root.
	Parent() *Group
	// Message returns the owning message, nil for detached structures.
	Message() *Message
	// IsEmpty reports whether the structure carries no data.
	IsEmpty() bool

	sealed()
}

// Group is a composite node holding child groups and segments in wire order.
type Group struct {
	name     string
	rep      int
	parent   *Group
	msg      *Message // root only
	children []Structure
}

// NewGroup returns a detached, empty group.
func NewGroup(name string) *Group {
	return &Group{name: name}
}

func (g *Group) Name() string      { return g.name }
func (g *Group) Repetition() int   { return g.rep }
func (g *Group) Parent() *Group    { return g.parent }
func (g *Group) Message() *Message { return root(g).msg }
func (g *Group) sealed()           {}

// IsEmpty reports whether every descendant segment is empty.
func (g *Group) IsEmpty() bool {
	for _, c := range g.children {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Add appends child to the group and returns its repetition index.
// A child already attached elsewhere is moved.
func (g *Group) Add(child Structure) int {
	rep := len(g.All(child.Name()))
	switch c := child.(type) {
	case *Group:
		c.parent, c.rep = g, rep
	case *Segment:
		c.parent, c.rep = g, rep
	}
	g.children = append(g.children, child)
	return rep
}

// Children returns the direct children in wire order.
func (g *Group) Children() []Structure {
	out := make([]Structure, len(g.children))
	copy(out, g.children)
	return out
}

// All returns every direct child called name, in repetition order.
func (g *Group) All(name string) []Structure {
	var out []Structure
	for _, c := range g.children {
		if c.Name() == name {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the rep-th direct child called name.
func (g *Group) Get(name string, rep int) (Structure, bool) {
	all := g.All(name)
	if rep < 0 || rep >= len(all) {
		return nil, false
	}
	return all[rep], true
}

// Segments returns every segment below g in wire order.
func (g *Group) Segments() []*Segment {
	var out []*Segment
	for _, c := range g.children {
		switch n := c.(type) {
		case *Segment:
			out = append(out, n)
		case *Group:
			out = append(out, n.Segments()...)
		}
	}
	return out
}

// Segment is a leaf node. Fields are kept in their raw ER7 form and indexed by
// HL7 field number: fields[0] is the segment ID.
type Segment struct {
	fields []string
	rep    int
	parent *Group
}

// NewSegment returns a detached segment. For MSH, fields[1] must be the
// field separator and fields[2] the encoding characters.
func NewSegment(name string, fields ...string) *Segment {
	return &Segment{fields: append([]string{name}, fields...)}
}

func (s *Segment) Name() string    { return s.fields[0] }
func (s *Segment) Repetition() int { return s.rep }
func (s *Segment) Parent() *Group  { return s.parent }
func (s *Segment) sealed()         {}

func (s *Segment) Message() *Message {
	if s.parent == nil {
		return nil
	}
	return s.parent.Message()
}

// IsEmpty reports whether no field after the segment ID has content.
func (s *Segment) IsEmpty() bool {
	for _, f := range s.data() {
		if f != "" {
			return false
		}
	}
	return true
}

// NumFields returns the highest populated field number.
func (s *Segment) NumFields() int {
	return len(s.fields) - 1
}

// Field returns the raw value of field n (1-based). Out of range yields "".
func (s *Segment) Field(n int) string {
	if n < 1 || n >= len(s.fields) {
		return ""
	}
	return s.fields[n]
}

// Component returns a single value addressed by field (1-based), repetition
// (0-based), component (1-based) and subcomponent (1-based).
// MSH-1 and MSH-2 are returned verbatim.
func (s *Segment) Component(field, rep, comp, sub int) string {
	return s.component(s.encoding(), field, rep, comp, sub)
}

func (s *Segment) component(enc Encoding, field, rep, comp, sub int) string {
	raw := s.Field(field)
	if s.isHeader() && field <= 2 {
		return raw
	}
	reps := strings.Split(raw, string(enc.Repetition))
	if rep < 0 || rep >= len(reps) {
		return ""
	}
	comps := strings.Split(reps[rep], string(enc.Component))
	if comp < 1 || comp > len(comps) {
		return ""
	}
	subs := strings.Split(comps[comp-1], string(enc.Subcomponent))
	if sub < 1 || sub > len(subs) {
		return ""
	}
	return subs[sub-1]
}

// Encode renders the segment in ER7 form, without a trailing separator.
func (s *Segment) Encode() string {
	sep := string(s.encoding().Field)
	if s.isHeader() {
		return s.fields[0] + sep + strings.Join(s.fields[2:], sep)
	}
	return strings.Join(s.fields, sep)
}

func (s *Segment) String() string { return s.Encode() }

func (s *Segment) isHeader() bool {
	return s.fields[0] == "MSH" && len(s.fields) > 2
}

// data returns the fields after the segment ID, skipping MSH-1 and MSH-2.
func (s *Segment) data() []string {
	if s.isHeader() {
		return s.fields[3:]
	}
	return s.fields[1:]
}

func (s *Segment) encoding() Encoding {
	if m := s.Message(); m != nil {
		return m.enc
	}
	return DefaultEncoding
}

func root(g *Group) *Group {
	for g.parent != nil {
		g = g.parent
	}
	return g
}
