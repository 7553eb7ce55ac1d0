package api

// Profile describes the group structure of one HL7 v2 message structure
// (e.g. ORU_R01). The parser uses it to place flat segments into groups.
type Profile struct {
	// Name of the message structure, matched against MSH-9.3 or type_trigger.
	Name string `json:"name" yaml:"name"`
	// Children of the root group, in wire order.
	Children []Element `json:"children,omitempty" yaml:"children,omitempty"`
}

// Element is either a segment (no children) or a group.
type Element struct {
	// Name is the segment ID (PID) or group name (PATIENT_RESULT).
	Name string `json:"name" yaml:"name"`
	// Repeating allows more than one consecutive occurrence.
	Repeating bool `json:"repeating,omitempty" yaml:"repeating,omitempty"`
	// Optional is informational; the parser is lenient about missing elements.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
	// Children makes this element a group.
	Children []Element `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsGroup reports whether the element describes a group.
func (e Element) IsGroup() bool {
	return len(e.Children) > 0
}

// Query is a declarative search over a message tree.
// Non-empty criteria are combined with AND; Segments and Groups are OR-ed together.
type Query struct {
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Segments []string `json:"segments,omitempty" yaml:"segments,omitempty"`
	Groups   []string `json:"groups,omitempty" yaml:"groups,omitempty"`
	// Field is a segment field reference like "PID-3" or "OBX-5.1".
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	// Value is compared against Field. An empty Value matches any non-empty field.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// JSONPath is evaluated against the structure's generic map form.
	JSONPath string `json:"jsonpath,omitempty" yaml:"jsonpath,omitempty"`
	// First stops the search after the first match.
	First bool `json:"first,omitempty" yaml:"first,omitempty"`
}

// Structure kinds reported in match records.
const (
	KindGroup   = "group"
	KindSegment = "segment"
)

// MatchRecord is the serialisable form of a single finder match.
type MatchRecord struct {
	MessageID string `json:"message_id,omitempty"`
	Query     string `json:"query,omitempty"`
	Location  string `json:"location"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	// Ordinal is the position of the match in visitation order.
	Ordinal int `json:"ordinal"`
	// Value is the ER7 encoding of a matched segment. Empty for groups.
	Value string `json:"value,omitempty"`
}
