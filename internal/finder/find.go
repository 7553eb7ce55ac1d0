package finder

import (
	"github.com/agentic-research/hl7find/api"
	"github.com/agentic-research/hl7find/internal/hl7"
)

// First returns the first structure of msg, in post-order, accepted by test.
func First(msg *hl7.Message, test Predicate) (Match, bool) {
	return first(hl7.Visit(msg, New(test, true)))
}

// All returns every structure of msg accepted by test, in post-order.
func All(msg *hl7.Message, test Predicate) []Match {
	return hl7.Visit(msg, New(test, false)).Matches()
}

// FirstIn is First restricted to g and its descendants, g included.
func FirstIn(g *hl7.Group, test Predicate) (Match, bool) {
	return first(hl7.VisitGroup(g, New(test, true)))
}

// AllIn is All restricted to g and its descendants, g included.
func AllIn(g *hl7.Group, test Predicate) []Match {
	return hl7.VisitGroup(g, New(test, false)).Matches()
}

func first(f *Finder) (Match, bool) {
	if len(f.matches) == 0 {
		return Match{}, false
	}
	return f.matches[0], true
}

// Run searches msg with a compiled query, honouring q.First.
func Run(msg *hl7.Message, q api.Query) ([]Match, error) {
	test, err := Compile(q)
	if err != nil {
		return nil, err
	}
	return hl7.Visit(msg, New(test, q.First)).Matches(), nil
}

// Compile turns a declarative query into a predicate. Segments and Groups
// are alternatives; Field/Value and JSONPath narrow them down. A query
// without criteria accepts every structure.
func Compile(q api.Query) (Predicate, error) {
	var all []Predicate

	var kinds []Predicate
	if len(q.Segments) > 0 {
		kinds = append(kinds, And(IsSegment, Named(q.Segments...)))
	}
	if len(q.Groups) > 0 {
		kinds = append(kinds, And(IsGroup, Named(q.Groups...)))
	}
	if len(kinds) > 0 {
		all = append(all, Or(kinds...))
	}

	if q.Field != "" {
		p, err := FieldEquals(q.Field, q.Value)
		if err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	if q.JSONPath != "" {
		p, err := JSONPath(q.JSONPath)
		if err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	if len(all) == 1 {
		return all[0], nil
	}
	return And(all...), nil
}

// Record converts a match into its serialisable form.
func Record(m Match, ordinal int) api.MatchRecord {
	rec := api.MatchRecord{
		Location: m.Location.String(),
		Name:     m.Structure.Name(),
		Ordinal:  ordinal,
	}
	switch s := m.Structure.(type) {
	case *hl7.Segment:
		rec.Kind = api.KindSegment
		rec.Value = s.Encode()
	case *hl7.Group:
		rec.Kind = api.KindGroup
	}
	return rec
}

// Records converts matches in order, tagging each with messageID and query.
func Records(matches []Match, messageID, query string) []api.MatchRecord {
	out := make([]api.MatchRecord, len(matches))
	for i, m := range matches {
		out[i] = Record(m, i)
		out[i].MessageID = messageID
		out[i].Query = query
	}
	return out
}
