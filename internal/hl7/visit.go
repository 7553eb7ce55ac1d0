package hl7

// Visitor receives callbacks during a depth-first walk of a message.
//
// Start hooks fire before a node's children; returning false skips the
// children but the matching End hook still fires. End hooks fire after all
// children (post-order); returning false aborts the walk. Once aborted, no
// further node is started, while End hooks of groups that were already
// started still fire exactly once.
type Visitor interface {
	StartMessage(m *Message) bool
	EndMessage(m *Message) bool
	StartGroup(g *Group, loc Location) bool
	EndGroup(g *Group, loc Location) bool
	StartSegment(s *Segment, loc Location) bool
	EndSegment(s *Segment, loc Location) bool
}

// VisitorSupport implements every Visitor hook as a no-op that continues.
// Embed it to override only the hooks of interest.
type VisitorSupport struct{}

func (VisitorSupport) StartMessage(*Message) bool           { return true }
func (VisitorSupport) EndMessage(*Message) bool             { return true }
func (VisitorSupport) StartGroup(*Group, Location) bool     { return true }
func (VisitorSupport) EndGroup(*Group, Location) bool       { return true }
func (VisitorSupport) StartSegment(*Segment, Location) bool { return true }
func (VisitorSupport) EndSegment(*Segment, Location) bool   { return true }

// Visit walks every structure of m with v and returns v.
// The root group is reported through the message hooks, not the group hooks.
func Visit[V Visitor](m *Message, v V) V {
	if m == nil {
		return v
	}
	w := &walker{v: v}
	if v.StartMessage(m) {
		w.children(m.root, Location{})
	}
	v.EndMessage(m)
	return v
}

// VisitGroup walks g and everything below it with v and returns v.
// Locations are absolute, computed from g's position in its message.
func VisitGroup[V Visitor](g *Group, v V) V {
	if g == nil {
		return v
	}
	w := &walker{v: v}
	w.group(g, LocationOf(g))
	return v
}

type walker struct {
	v       Visitor
	stopped bool
}

func (w *walker) group(g *Group, loc Location) {
	if w.v.StartGroup(g, loc) {
		w.children(g, loc)
	}
	if !w.v.EndGroup(g, loc) {
		w.stopped = true
	}
}

func (w *walker) segment(s *Segment, loc Location) {
	w.v.StartSegment(s, loc)
	if !w.v.EndSegment(s, loc) {
		w.stopped = true
	}
}

func (w *walker) children(g *Group, loc Location) {
	for _, c := range g.children {
		if w.stopped {
			return
		}
		childLoc := loc.Child(c.Name(), c.Repetition())
		switch n := c.(type) {
		case *Group:
			w.group(n, childLoc)
		case *Segment:
			w.segment(n, childLoc)
		}
	}
}
