package hl7

import "strings"

// Generic converts a structure into plain maps and slices for JSONPath style
// queries.
//
// A segment becomes {"name": "PID", "kind": "segment", "fields": [...]} where
// fields[n] is HL7 field n (fields[0] is the segment ID). A field value is a
// string, a list of components, or a list of repetitions when repeated.
// A group becomes {"name": ..., "kind": "group", "children": [...]}.
func Generic(s Structure) map[string]any {
	switch n := s.(type) {
	case *Segment:
		enc := n.encoding()
		fields := make([]any, len(n.fields))
		for i, f := range n.fields {
			if i == 0 || (n.isHeader() && i <= 2) {
				fields[i] = f
				continue
			}
			fields[i] = genericField(f, enc)
		}
		return map[string]any{"name": n.Name(), "kind": "segment", "fields": fields}
	case *Group:
		children := make([]any, len(n.children))
		for i, c := range n.children {
			children[i] = Generic(c)
		}
		return map[string]any{"name": n.Name(), "kind": "group", "children": children}
	}
	return nil
}

func genericField(raw string, enc Encoding) any {
	if !strings.ContainsRune(raw, rune(enc.Repetition)) {
		return genericComponents(raw, enc)
	}
	reps := strings.Split(raw, string(enc.Repetition))
	out := make([]any, len(reps))
	for i, r := range reps {
		out[i] = genericComponents(r, enc)
	}
	return out
}

func genericComponents(raw string, enc Encoding) any {
	if !strings.ContainsRune(raw, rune(enc.Component)) && !strings.ContainsRune(raw, rune(enc.Subcomponent)) {
		return raw
	}
	comps := strings.Split(raw, string(enc.Component))
	out := make([]any, len(comps))
	for i, c := range comps {
		if !strings.ContainsRune(c, rune(enc.Subcomponent)) {
			out[i] = c
			continue
		}
		subs := strings.Split(c, string(enc.Subcomponent))
		parts := make([]any, len(subs))
		for j, sub := range subs {
			parts[j] = sub
		}
		out[i] = parts
	}
	return out
}
