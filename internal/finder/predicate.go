package finder

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/agentic-research/hl7find/internal/hl7"
	"github.com/ohler55/ojg/jp"
)

// ErrBadFieldRef is returned for a field reference that is not of the form
// SEG-F[.C[.S]], e.g. PID-3 or OBX-5.1.
var ErrBadFieldRef = errors.New("bad field reference")

// Predicate decides whether a structure is a match.
type Predicate func(hl7.Structure) bool

// Any accepts every structure.
func Any(hl7.Structure) bool { return true }

// IsSegment accepts segments.
func IsSegment(s hl7.Structure) bool {
	_, ok := s.(*hl7.Segment)
	return ok
}

// IsGroup accepts groups.
func IsGroup(s hl7.Structure) bool {
	_, ok := s.(*hl7.Group)
	return ok
}

// Named accepts structures whose name is one of names.
func Named(names ...string) Predicate {
	return func(s hl7.Structure) bool {
		return slices.Contains(names, s.Name())
	}
}

// And accepts structures accepted by every p. And() accepts everything.
func And(ps ...Predicate) Predicate {
	return func(s hl7.Structure) bool {
		for _, p := range ps {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Or accepts structures accepted by at least one p. Or() accepts nothing.
func Or(ps ...Predicate) Predicate {
	return func(s hl7.Structure) bool {
		for _, p := range ps {
			if p(s) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(s hl7.Structure) bool {
		return !p(s)
	}
}

// FieldRef addresses a value inside a segment. Component and Subcomponent
// are 0 when the whole field or component is meant.
type FieldRef struct {
	Segment      string
	Field        int
	Component    int
	Subcomponent int
}

// ParseFieldRef parses references like PID-3, PID-5.2 or PID-3.4.1.
func ParseFieldRef(ref string) (FieldRef, error) {
	name, rest, ok := strings.Cut(ref, "-")
	if !ok || len(name) != 3 || rest == "" {
		return FieldRef{}, fmt.Errorf("%w: %q", ErrBadFieldRef, ref)
	}
	parts := strings.Split(rest, ".")
	if len(parts) > 3 {
		return FieldRef{}, fmt.Errorf("%w: %q", ErrBadFieldRef, ref)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return FieldRef{}, fmt.Errorf("%w: %q", ErrBadFieldRef, ref)
		}
		nums[i] = n
	}
	return FieldRef{Segment: strings.ToUpper(name), Field: nums[0], Component: nums[1], Subcomponent: nums[2]}, nil
}

// Value reads the referenced value from the first repetition of s.
// MSH-1 and MSH-2 hold the delimiters themselves and are returned verbatim.
func (r FieldRef) Value(s *hl7.Segment) string {
	switch {
	case s.Name() == "MSH" && r.Field <= 2:
		return s.Field(r.Field)
	case r.Component == 0:
		return strings.SplitN(s.Field(r.Field), string(encodingOf(s).Repetition), 2)[0]
	case r.Subcomponent == 0:
		return r.wholeComponent(s)
	default:
		return s.Component(r.Field, 0, r.Component, r.Subcomponent)
	}
}

func (r FieldRef) wholeComponent(s *hl7.Segment) string {
	enc := encodingOf(s)
	rep := strings.SplitN(s.Field(r.Field), string(enc.Repetition), 2)[0]
	comps := strings.Split(rep, string(enc.Component))
	if r.Component > len(comps) {
		return ""
	}
	return comps[r.Component-1]
}

func encodingOf(s *hl7.Segment) hl7.Encoding {
	if m := s.Message(); m != nil {
		return m.Encoding()
	}
	return hl7.DefaultEncoding
}

// FieldEquals accepts segments named after ref whose referenced value equals
// value. An empty value accepts any non-empty field.
func FieldEquals(ref, value string) (Predicate, error) {
	r, err := ParseFieldRef(ref)
	if err != nil {
		return nil, err
	}
	return func(s hl7.Structure) bool {
		seg, ok := s.(*hl7.Segment)
		if !ok || seg.Name() != r.Segment {
			return false
		}
		got := r.Value(seg)
		if value == "" {
			return got != ""
		}
		return got == value
	}, nil
}

// JSONPath accepts structures for which expr selects at least one non-empty
// value in the structure's hl7.Generic form.
func JSONPath(expr string) (Predicate, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	return func(s hl7.Structure) bool {
		for _, v := range x.Get(hl7.Generic(s)) {
			switch tv := v.(type) {
			case nil:
			case string:
				if tv != "" {
					return true
				}
			default:
				return true
			}
		}
		return false
	}, nil
}
