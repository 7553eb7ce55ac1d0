package hl7

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/hl7find/api"
)

var (
	// ErrNoHeader is returned when the input does not start with an MSH segment.
	ErrNoHeader = errors.New("message does not start with MSH")
	// ErrBadSegment is returned for a segment whose ID is not three upper-case alphanumerics.
	ErrBadSegment = errors.New("malformed segment")
)

type parseOptions struct {
	profile  *api.Profile
	profiles Profiles
}

// ParseOption configures Parse.
type ParseOption func(o *parseOptions)

// WithProfile groups segments according to p, regardless of MSH-9.
func WithProfile(p *api.Profile) ParseOption {
	return func(o *parseOptions) {
		o.profile = p
	}
}

// WithProfiles selects the grouping profile from reg using MSH-9.
func WithProfiles(reg Profiles) ParseOption {
	return func(o *parseOptions) {
		o.profiles = reg
	}
}

// Parse decodes an ER7 encoded message. Segments may be terminated by CR, LF
// or CRLF. Without a matching profile the message is flat: every segment is a
// direct child of the root group.
func Parse(data []byte, opts ...ParseOption) (*Message, error) {
	o := &parseOptions{}
	for _, opt := range opts {
		opt(o)
	}

	lines := splitSegments(string(data))
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "MSH") || len(lines[0]) < 4 {
		return nil, ErrNoHeader
	}
	enc := readEncoding(lines[0])

	segs := make([]*Segment, 0, len(lines))
	for i, line := range lines {
		seg, err := parseSegment(line, enc)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d (%.16q)", err, i+1, line)
		}
		segs = append(segs, seg)
	}

	header := segs[0]
	msgType := header.component(enc, 9, 0, 1, 1)
	trigger := header.component(enc, 9, 0, 2, 1)
	structure := header.component(enc, 9, 0, 3, 1)

	profile := o.profile
	if profile == nil && o.profiles != nil {
		profile, _ = o.profiles.Lookup(msgType, trigger, structure)
	}
	if structure == "" {
		switch {
		case profile != nil:
			structure = profile.Name
		case msgType != "" && trigger != "":
			structure = msgType + "_" + trigger
		default:
			structure = msgType
		}
	}

	m := NewMessage(structure, enc)
	m.typ = msgType
	m.trigger = trigger
	m.controlID = header.Field(10)
	m.version = header.component(enc, 12, 0, 1, 1)

	if profile == nil {
		for _, s := range segs {
			m.root.Add(s)
		}
		return m, nil
	}
	newGrouper(segs, profile).place(m.root, profile.Children)
	return m, nil
}

func splitSegments(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\r")
	s = strings.ReplaceAll(s, "\n", "\r")
	var out []string
	for _, line := range strings.Split(s, "\r") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func readEncoding(header string) Encoding {
	enc := DefaultEncoding
	enc.Field = header[3]
	chars := header[4:]
	if i := strings.IndexByte(chars, enc.Field); i >= 0 {
		chars = chars[:i]
	}
	dst := []*byte{&enc.Component, &enc.Repetition, &enc.Escape, &enc.Subcomponent}
	for i := 0; i < len(chars) && i < len(dst); i++ {
		*dst[i] = chars[i]
	}
	return enc
}

func parseSegment(line string, enc Encoding) (*Segment, error) {
	if len(line) < 3 || (len(line) > 3 && line[3] != enc.Field) || !validName(line[:3]) {
		return nil, ErrBadSegment
	}
	sep := string(enc.Field)
	if line[:3] != "MSH" {
		return &Segment{fields: strings.Split(line, sep)}, nil
	}
	if len(line) < 4 {
		return nil, ErrBadSegment
	}
	rest := strings.SplitN(line[4:], sep, 2)
	fields := []string{"MSH", sep, rest[0]}
	if len(rest) == 2 {
		fields = append(fields, strings.Split(rest[1], sep)...)
	}
	return &Segment{fields: fields}, nil
}

func validName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// grouper places a flat segment list into groups, greedily following a profile.
type grouper struct {
	segs  []*Segment
	pos   int
	known map[string]bool
}

func newGrouper(segs []*Segment, profile *api.Profile) *grouper {
	p := &grouper{segs: segs, known: map[string]bool{}}
	p.collect(profile.Children)
	return p
}

func (p *grouper) collect(children []api.Element) {
	for _, el := range children {
		if el.IsGroup() {
			p.collect(el.Children)
			continue
		}
		p.known[el.Name] = true
	}
}

// place fills the root group. Segments the profile never mentions stay in the
// group being filled when they occur. Known segments out of profile order are
// appended to the deepest open group and placement restarts at the root.
func (p *grouper) place(root *Group, children []api.Element) {
	for {
		p.fill(root, children)
		if p.pos >= len(p.segs) {
			return
		}
		deepest(root).Add(p.segs[p.pos])
		p.pos++
	}
}

// fill walks the profile elements in order and reports whether any segment was consumed.
func (p *grouper) fill(g *Group, children []api.Element) bool {
	start := p.pos
	for _, el := range children {
		for {
			if p.pos > start {
				p.absorb(g)
			}
			if p.pos >= len(p.segs) || !p.element(g, el) || !el.Repeating {
				break
			}
		}
	}
	if p.pos > start {
		p.absorb(g)
	}
	return p.pos > start
}

// absorb adds the run of unknown segments at the current position to g.
func (p *grouper) absorb(g *Group) {
	for p.pos < len(p.segs) && !p.known[p.segs[p.pos].Name()] {
		g.Add(p.segs[p.pos])
		p.pos++
	}
}

func (p *grouper) element(g *Group, el api.Element) bool {
	if !el.IsGroup() {
		if p.segs[p.pos].Name() != el.Name {
			return false
		}
		g.Add(p.segs[p.pos])
		p.pos++
		return true
	}
	child := NewGroup(el.Name)
	if !p.fill(child, el.Children) {
		return false
	}
	g.Add(child)
	return true
}

func deepest(g *Group) *Group {
	for len(g.children) > 0 {
		last, ok := g.children[len(g.children)-1].(*Group)
		if !ok {
			break
		}
		g = last
	}
	return g
}
