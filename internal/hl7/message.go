package hl7

import "strings"

// Encoding holds the delimiters declared in MSH-1 and MSH-2.
type Encoding struct {
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	Subcomponent byte
}

// DefaultEncoding is |^~\&.
var DefaultEncoding = Encoding{
	Field:        '|',
	Component:    '^',
	Repetition:   '~',
	Escape:       '\\',
	Subcomponent: '&',
}

// Characters returns the MSH-2 form of the encoding.
func (e Encoding) Characters() string {
	return string([]byte{e.Component, e.Repetition, e.Escape, e.Subcomponent})
}

// Message is a parsed HL7 v2 message. Its root group holds the top level
// segments and groups; the root itself is named after the message structure.
type Message struct {
	root      *Group
	enc       Encoding
	typ       string
	trigger   string
	structure string
	controlID string
	version   string
}

// NewMessage returns an empty message whose root group is called structure.
func NewMessage(structure string, enc Encoding) *Message {
	m := &Message{root: NewGroup(structure), enc: enc, structure: structure}
	m.root.msg = m
	return m
}

// Root returns the root group.
func (m *Message) Root() *Group { return m.root }

// Encoding returns the delimiters used by the message.
func (m *Message) Encoding() Encoding { return m.enc }

// Type is MSH-9.1, e.g. ORU.
func (m *Message) Type() string { return m.typ }

// Trigger is MSH-9.2, e.g. R01.
func (m *Message) Trigger() string { return m.trigger }

// Structure is MSH-9.3 when present, else the profile used to parse the message.
func (m *Message) Structure() string { return m.structure }

// ControlID is MSH-10.
func (m *Message) ControlID() string { return m.controlID }

// Version is MSH-12.
func (m *Message) Version() string { return m.version }

// Header returns the MSH segment, if any.
func (m *Message) Header() *Segment {
	for _, s := range m.root.Segments() {
		if s.Name() == "MSH" {
			return s
		}
	}
	return nil
}

// Encode renders the message in ER7 form with CR segment terminators.
func (m *Message) Encode() string {
	var sb strings.Builder
	for _, s := range m.root.Segments() {
		sb.WriteString(s.Encode())
		sb.WriteByte('\r')
	}
	return sb.String()
}
