// Package finder locates groups and segments of a parsed HL7 v2 message that
// satisfy a predicate.
//
// A Finder is an hl7.Visitor. It is built for exactly one walk:
//
//	f := hl7.Visit(msg, finder.New(finder.Named("OBX"), false))
//	for _, m := range f.Matches() { ... }
//
// The walk itself, and therefore the order of matches, belongs to hl7.Visit:
// structures are tested post-order, when their End hook fires.
package finder

import (
	"github.com/agentic-research/hl7find/internal/hl7"
)

// Match pairs a matching structure with the location it was found at.
// The structure is the node of the message tree, not a copy.
type Match struct {
	Location  hl7.Location
	Structure hl7.Structure
}

// Finder collects the structures accepted by its predicate.
// It is not safe for concurrent use and must not be reused across walks.
type Finder struct {
	hl7.VisitorSupport

	test      Predicate
	findFirst bool
	matches   []Match
}

// New returns a Finder testing every visited group and segment with test.
// With findFirst the Finder asks the walk to stop after the first match.
// A nil test accepts every structure.
func New(test Predicate, findFirst bool) *Finder {
	if test == nil {
		test = Any
	}
	return &Finder{test: test, findFirst: findFirst}
}

// Matches returns the matches collected so far, in visitation order.
func (f *Finder) Matches() []Match {
	out := make([]Match, len(f.matches))
	copy(out, f.matches)
	return out
}

// Done reports whether a first match has been found in findFirst mode.
// Without findFirst the Finder never finishes on its own.
func (f *Finder) Done() bool {
	return f.findFirst && len(f.matches) > 0
}

// EndGroup implements hl7.Visitor.
func (f *Finder) EndGroup(g *hl7.Group, loc hl7.Location) bool {
	return f.end(g, loc)
}

// EndSegment implements hl7.Visitor.
func (f *Finder) EndSegment(s *hl7.Segment, loc hl7.Location) bool {
	return f.end(s, loc)
}

// end tests s unless the search is already done and reports whether the walk
// should continue. Once done the predicate is never called again.
func (f *Finder) end(s hl7.Structure, loc hl7.Location) bool {
	if !f.Done() && f.test(s) {
		f.matches = append(f.matches, Match{Location: loc, Structure: s})
	}
	return !f.Done()
}
