package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/agentic-research/hl7find/api"
	"github.com/agentic-research/hl7find/internal/hl7"
	"github.com/agentic-research/hl7find/internal/store"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	oruGlucose = "MSH|^~\\&|LAB|HOSP|EHR|HOSP|20240101120000||ORU^R01^ORU_R01|LAB1|P|2.5.1\r" +
		"PID|1||100^^^HOSP^MR||Doe^Jane\r" +
		"OBR|1|ORD1||GLU^Glucose\r" +
		"OBX|1|NM|GLU^Glucose||5.5|mmol/L\r" +
		"OBX|2|NM|HB^Hemoglobin||14|g/dL\r"
	adtAdmit = "MSH|^~\\&|ADT|HOSP|EHR|HOSP|20240101130000||ADT^A01|ADT1|P|2.5.1\r" +
		"EVN|A01|20240101130000\r" +
		"PID|1||200^^^HOSP^MR||Roe^Sam\r" +
		"PV1|1|I\r"
	noControlID = "MSH|^~\\&|LAB|HOSP|EHR|HOSP|20240101140000||ORU^R01||P|2.5.1\r" +
		"PID|1||300\r" +
		"OBR|1|ORD3||HB^Hemoglobin\r" +
		"OBX|1|NM|HB^Hemoglobin||12|g/dL\r"
)

func testFS(t *testing.T) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "in/lab.hl7", []byte(oruGlucose+noControlID), 0o644))
	require.NoError(t, util.WriteFile(fsys, "in/adt.hl7", []byte(adtAdmit), 0o644))
	require.NoError(t, util.WriteFile(fsys, "in/broken.hl7", []byte("MSH|^~\\&|X\rpid|bad\r"), 0o644))
	return fsys
}

func decodeLines(t *testing.T, b []byte) []api.MatchRecord {
	t.Helper()
	var out []api.MatchRecord
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var rec api.MatchRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunFind(t *testing.T) {
	fsys := testFS(t)
	reg := hl7.DefaultProfiles()

	t.Run("all OBX across messages", func(t *testing.T) {
		var buf bytes.Buffer
		q := api.Query{Name: "obx", Segments: []string{"OBX"}}
		require.NoError(t, runFind(&buf, fsys, []string{"in/lab.hl7", "in/adt.hl7"}, q, zap.NewNop(), hl7.WithProfiles(reg)))

		recs := decodeLines(t, buf.Bytes())
		require.Len(t, recs, 3)
		assert.Equal(t, "LAB1", recs[0].MessageID)
		assert.Equal(t, "obx", recs[0].Query)
		assert.Equal(t, 1, recs[1].Ordinal)
		assert.Equal(t, "in/lab.hl7#2", recs[2].MessageID, "falls back to path and index")
		assert.Equal(t, 0, recs[2].Ordinal)
	})

	t.Run("first per message", func(t *testing.T) {
		var buf bytes.Buffer
		q := api.Query{Field: "OBX-3.1", Value: "HB", First: true}
		require.NoError(t, runFind(&buf, fsys, []string{"in/lab.hl7"}, q, zap.NewNop(), hl7.WithProfiles(reg)))

		recs := decodeLines(t, buf.Bytes())
		require.Len(t, recs, 2)
		assert.Equal(t, "OBX|2|NM|HB^Hemoglobin||14|g/dL", recs[0].Value)
		assert.Equal(t, "OBX|1|NM|HB^Hemoglobin||12|g/dL", recs[1].Value)
	})

	t.Run("groups", func(t *testing.T) {
		var buf bytes.Buffer
		q := api.Query{Groups: []string{"PATIENT_RESULT"}}
		require.NoError(t, runFind(&buf, fsys, []string{"in/lab.hl7"}, q, zap.NewNop(), hl7.WithProfiles(reg)))

		recs := decodeLines(t, buf.Bytes())
		require.Len(t, recs, 2)
		assert.Equal(t, api.KindGroup, recs[0].Kind)
		assert.Empty(t, recs[0].Value)
	})

	t.Run("errors", func(t *testing.T) {
		var buf bytes.Buffer
		err := runFind(&buf, fsys, []string{"in/missing.hl7"}, api.Query{}, zap.NewNop())
		assert.ErrorContains(t, err, "read in/missing.hl7")

		err = runFind(&buf, fsys, []string{"in/broken.hl7"}, api.Query{}, zap.NewNop())
		assert.ErrorIs(t, err, hl7.ErrBadSegment)

		err = runFind(&buf, fsys, []string{"in/lab.hl7"}, api.Query{Field: "nope"}, zap.NewNop())
		assert.ErrorContains(t, err, "query")
		assert.Zero(t, buf.Len())
	})
}

func TestLoadAndScan(t *testing.T) {
	fsys := testFS(t)
	reg := hl7.DefaultProfiles()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "messages.db")
	outPath := filepath.Join(dir, "matches.db")

	n, err := runLoad(fsys, dbPath, []string{"in/lab.hl7", "in/adt.hl7", "in/broken.hl7"}, reg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, n, "broken message is skipped")

	queries := []api.Query{
		{Name: "obx", Segments: []string{"OBX"}},
		{Name: "pid", Segments: []string{"PID"}, First: true},
		{Name: "visit", Segments: []string{"PV1"}},
	}
	idx, err := runScan(dbPath, outPath, queries, reg, zap.NewNop())
	require.NoError(t, err)

	// Stream order is by id: ADT1, LAB1, in/lab.hl7#2.
	assert.Equal(t, []uint32{1, 2}, idx.Messages("obx"))
	assert.Equal(t, []uint32{0, 1, 2}, idx.Messages("pid"))
	assert.Equal(t, []uint32{0}, idx.Messages("visit"))
	assert.Equal(t, []uint32{1, 2}, idx.Common("obx", "pid"))
	assert.Empty(t, idx.Common("obx", "visit"))

	recs, err := store.LoadMatches(outPath, "LAB1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "obx", recs[0].Query)
	assert.Equal(t, "pid", recs[2].Query)

	var buf bytes.Buffer
	printSummary(&buf, idx, queries)
	assert.Contains(t, buf.String(), "obx")
	assert.Contains(t, buf.String(), "(all)")
}

func TestRunLoad_DuplicateControlID(t *testing.T) {
	fsys := testFS(t)
	require.NoError(t, util.WriteFile(fsys, "in/resend.hl7", []byte(oruGlucose), 0o644))
	dbPath := filepath.Join(t.TempDir(), "messages.db")

	core, logs := observer.New(zapcore.WarnLevel)
	n, err := runLoad(fsys, dbPath, []string{"in/lab.hl7", "in/resend.hl7"}, hl7.DefaultProfiles(), zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "LAB1 is stored once")

	dups := logs.FilterMessage("duplicate message id replaces earlier message").All()
	require.Len(t, dups, 1)
	fields := dups[0].ContextMap()
	assert.Equal(t, "LAB1", fields["message_id"])
	assert.Equal(t, "in/resend.hl7", fields["path"])
	assert.Equal(t, "in/lab.hl7", fields["previous_path"])
}

func TestRunScan_Errors(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "messages.db")

	_, err := runScan(dbPath, filepath.Join(dir, "out.db"), nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, errNoQueries)

	q := []api.Query{{Name: "x"}}
	_, err = runScan(dbPath, dbPath, q, nil, zap.NewNop())
	assert.ErrorContains(t, err, "must differ")

	_, err = runScan(dbPath, filepath.Join(dir, "out.db"), []api.Query{{Name: "bad", JSONPath: "$.fields["}}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "query bad")
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}
