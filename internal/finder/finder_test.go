package finder

import (
	"testing"

	"github.com/agentic-research/hl7find/internal/hl7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oruMessage = "MSH|^~\\&|LAB|HOSP|EHR|HOSP|20240101120000||ORU^R01^ORU_R01|MSG0001|P|2.5.1\r" +
	"PID|1||12345^^^HOSP^MR||Doe^John||19800101|M\r" +
	"PV1|1|O\r" +
	"OBR|1|ORD1||GLU^Glucose\r" +
	"OBX|1|NM|GLU^Glucose||5.5|mmol/L\r" +
	"NTE|1||fasting\r" +
	"OBX|2|NM|HB^Hemoglobin||14|g/dL\r" +
	"OBR|2|ORD2||CBC^Blood count\r" +
	"OBX|1|NM|WBC^White cells||7.1\r"

func parseORU(t *testing.T) *hl7.Message {
	t.Helper()
	m, err := hl7.Parse([]byte(oruMessage), hl7.WithProfiles(hl7.DefaultProfiles()))
	require.NoError(t, err)
	return m
}

// tree is root{G1{S1}, G2{S2}}.
type tree struct {
	msg          *hl7.Message
	g1, g2       *hl7.Group
	s1, s2       *hl7.Segment
	locS1, locS2 hl7.Location
	locG1, locG2 hl7.Location
}

func newTree() tree {
	t := tree{
		msg: hl7.NewMessage("ROOT", hl7.DefaultEncoding),
		g1:  hl7.NewGroup("G1"),
		g2:  hl7.NewGroup("G2"),
		s1:  hl7.NewSegment("S1", "one"),
		s2:  hl7.NewSegment("S2", "two"),
	}
	t.g1.Add(t.s1)
	t.g2.Add(t.s2)
	t.msg.Root().Add(t.g1)
	t.msg.Root().Add(t.g2)
	t.locG1 = hl7.Location{}.Child("G1", 0)
	t.locG2 = hl7.Location{}.Child("G2", 0)
	t.locS1 = t.locG1.Child("S1", 0)
	t.locS2 = t.locG2.Child("S2", 0)
	return t
}

// hookLog records what the finder's End hooks return during a walk.
type hookLog struct {
	*Finder
	returns []bool
}

func (h *hookLog) EndGroup(g *hl7.Group, loc hl7.Location) bool {
	r := h.Finder.EndGroup(g, loc)
	h.returns = append(h.returns, r)
	return r
}

func (h *hookLog) EndSegment(s *hl7.Segment, loc hl7.Location) bool {
	r := h.Finder.EndSegment(s, loc)
	h.returns = append(h.returns, r)
	return r
}

// counting wraps p and records the name of every structure it is asked about.
func counting(p Predicate) (Predicate, *[]string) {
	var seen []string
	return func(s hl7.Structure) bool {
		seen = append(seen, s.Name())
		return p(s)
	}, &seen
}

func TestFinder_AllSegments(t *testing.T) {
	tr := newTree()
	h := hl7.Visit(tr.msg, &hookLog{Finder: New(IsSegment, false)})

	matches := h.Matches()
	require.Len(t, matches, 2)
	assert.Same(t, tr.s1, matches[0].Structure)
	assert.Equal(t, tr.locS1, matches[0].Location)
	assert.Same(t, tr.s2, matches[1].Structure)
	assert.Equal(t, tr.locS2, matches[1].Location)

	assert.Equal(t, []bool{true, true, true, true}, h.returns, "collect-all never asks to stop")
	assert.False(t, h.Done())
}

func TestFinder_FirstSegmentStopsAndShortCircuits(t *testing.T) {
	tr := newTree()
	test, seen := counting(IsSegment)
	h := hl7.Visit(tr.msg, &hookLog{Finder: New(test, true)})

	matches := h.Matches()
	require.Len(t, matches, 1)
	assert.Same(t, tr.s1, matches[0].Structure)
	assert.Equal(t, "/G1(0)/S1(0)", matches[0].Location.String())

	assert.Equal(t, []string{"S1"}, *seen, "predicate is not evaluated after the first match")
	assert.Equal(t, []bool{false, false}, h.returns, "S1 stops the walk, G1 still ends but short-circuits")
	assert.True(t, h.Done())

	// Hooks invoked after the first match return false without testing.
	assert.False(t, h.Finder.EndSegment(tr.s2, tr.locS2))
	assert.False(t, h.Finder.EndGroup(tr.g2, tr.locG2))
	assert.Equal(t, []string{"S1"}, *seen)
	assert.Len(t, h.Matches(), 1)
}

func TestFinder_NoMatch(t *testing.T) {
	never := func(hl7.Structure) bool { return false }
	for _, findFirst := range []bool{false, true} {
		tr := newTree()
		test, seen := counting(never)
		h := hl7.Visit(tr.msg, &hookLog{Finder: New(test, findFirst)})

		assert.Empty(t, h.Matches())
		assert.Equal(t, []bool{true, true, true, true}, h.returns)
		assert.Equal(t, []string{"S1", "G1", "S2", "G2"}, *seen, "every node is tested post-order")
		assert.False(t, h.Done())
	}
}

func TestFinder_EmptyMessage(t *testing.T) {
	test, seen := counting(Any)
	f := hl7.Visit(hl7.NewMessage("EMPTY", hl7.DefaultEncoding), New(test, true))
	assert.Empty(t, f.Matches())
	assert.Empty(t, *seen)
	assert.False(t, f.Done())
}

func TestFinder_MatchesIsIdempotent(t *testing.T) {
	f := hl7.Visit(parseORU(t), New(Named("OBX"), false))

	first := f.Matches()
	second := f.Matches()
	assert.Equal(t, first, second)
	require.Len(t, first, 3)

	first[0] = Match{}
	assert.Equal(t, second, f.Matches(), "callers cannot mutate collected matches")
}

func TestFinder_DirectHooks(t *testing.T) {
	tr := newTree()
	f := New(Named("G1", "S2"), false)

	assert.True(t, f.EndSegment(tr.s1, tr.locS1))
	assert.True(t, f.EndGroup(tr.g1, tr.locG1))
	assert.True(t, f.EndSegment(tr.s2, tr.locS2))
	assert.Equal(t, []Match{{Location: tr.locG1, Structure: tr.g1}, {Location: tr.locS2, Structure: tr.s2}}, f.Matches())

	// No dedup: the same node reported twice is recorded twice.
	f.EndSegment(tr.s2, tr.locS2)
	assert.Len(t, f.Matches(), 3)
}

func TestFinder_NilPredicateAcceptsAll(t *testing.T) {
	tr := newTree()
	f := hl7.Visit(tr.msg, New(nil, false))
	assert.Len(t, f.Matches(), 4)
}

func TestFinder_PredicatePanicPropagates(t *testing.T) {
	msg := parseORU(t)
	assert.PanicsWithValue(t, "boom", func() {
		All(msg, func(hl7.Structure) bool { panic("boom") })
	})
}

func TestAll_PostOrder(t *testing.T) {
	var got []string
	for _, m := range All(parseORU(t), Any) {
		got = append(got, m.Structure.Name())
	}
	assert.Equal(t, []string{
		"MSH", "PID", "PV1", "VISIT", "PATIENT",
		"OBR", "OBX", "NTE", "OBSERVATION", "OBX", "OBSERVATION", "ORDER_OBSERVATION",
		"OBR", "OBX", "OBSERVATION", "ORDER_OBSERVATION",
		"PATIENT_RESULT",
	}, got)
}

func TestFirst(t *testing.T) {
	msg := parseORU(t)

	t.Run("first segment by name", func(t *testing.T) {
		m, ok := First(msg, Named("OBX"))
		require.True(t, ok)
		assert.Equal(t, "/PATIENT_RESULT(0)/ORDER_OBSERVATION(0)/OBSERVATION(0)/OBX(0)", m.Location.String())
		assert.Equal(t, "GLU^Glucose", m.Structure.(*hl7.Segment).Field(3))
	})

	t.Run("first group is the deepest first closed", func(t *testing.T) {
		m, ok := First(msg, IsGroup)
		require.True(t, ok)
		assert.Equal(t, "VISIT", m.Structure.Name())
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := First(msg, Named("ZZZ"))
		assert.False(t, ok)
	})
}

func TestFirstInAndAllIn(t *testing.T) {
	msg := parseORU(t)
	pr, _ := msg.Root().Get("PATIENT_RESULT", 0)
	order, ok := pr.(*hl7.Group).Get("ORDER_OBSERVATION", 1)
	require.True(t, ok)

	obx := AllIn(order.(*hl7.Group), Named("OBX"))
	require.Len(t, obx, 1)
	assert.Equal(t, "/PATIENT_RESULT(0)/ORDER_OBSERVATION(1)/OBSERVATION(0)/OBX(0)", obx[0].Location.String())

	self, ok := FirstIn(order.(*hl7.Group), Named("ORDER_OBSERVATION"))
	require.True(t, ok)
	assert.Same(t, order, self.Structure, "the starting group is a candidate")
}
