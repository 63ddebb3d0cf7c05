package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/hostsim/sim"
)

var testStart = time.Unix(1700000000, 0).UTC()

func testOutcomes() []sim.Outcome {
	return []sim.Outcome{
		{Kind: sim.OutcomeSpawned, Clock: 100 * time.Millisecond, Request: 0, Server: sim.NoServer, Target: sim.NoServer, Size: 7},
		{Kind: sim.OutcomeHandled, Clock: 2100 * time.Millisecond, Request: 0, Server: 1, Target: sim.NoServer, Age: 2.0, Size: 7},
		{Kind: sim.OutcomeDropped, Clock: 2200 * time.Millisecond, Request: 1, Server: 1, Target: sim.NoServer, Reason: sim.DropServerBusy},
		{Kind: sim.OutcomeGraded, Clock: 3000 * time.Millisecond, Server: sim.NoServer, Target: sim.NoServer,
			Results: &sim.LevelResults{Passed: true}},
	}
}

func TestRows(t *testing.T) {
	// GIVEN a handful of outcomes
	rows := Rows("run-1", "Alpha Test", testStart, testOutcomes())

	// THEN every outcome becomes a row carrying the run and level
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, "Alpha Test", r.Level)
	}
	assert.Equal(t, "handled", rows[1].Kind)
	assert.Equal(t, int64(2100), rows[1].ClockMs)
	assert.Equal(t, testStart.Add(2100*time.Millisecond), rows[1].Timestamp)
	assert.Equal(t, "server_busy", rows[2].Reason)
	assert.True(t, rows[3].Passed)
	assert.False(t, rows[1].Passed)
}

func TestNewRunID_Unique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestFileWriter_OneLinePerRow(t *testing.T) {
	// GIVEN a JSONL writer
	path := filepath.Join(t.TempDir(), "outcomes.jsonl")
	fw, err := NewFileWriter(path)
	require.NoError(t, err)

	// WHEN two batches are written
	rows := Rows("run-2", "L", testStart, testOutcomes())
	require.NoError(t, fw.WriteOutcomes(rows[:2]))
	require.NoError(t, fw.WriteOutcomes(rows[2:]))
	require.NoError(t, fw.Close())

	// THEN each row is one decodable line, in order
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var got []OutcomeRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r OutcomeRow
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		got = append(got, r)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 4)
	assert.Equal(t, "spawned", got[0].Kind)
	assert.Equal(t, "graded", got[3].Kind)
	assert.Equal(t, 7, got[0].Size)
}

func TestNewFileWriter_BadPath(t *testing.T) {
	_, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "out.jsonl"))
	assert.Error(t, err)
}

type mockGreptimeClient struct {
	tables []*table.Table
	err    error
}

func (m *mockGreptimeClient) Write(_ context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.tables = append(m.tables, tables...)
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeDBWriter_BuildsTable(t *testing.T) {
	// GIVEN a writer backed by a mock client
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, table: DefaultOutcomeTable}

	// WHEN rows are written
	require.NoError(t, w.WriteOutcomes(Rows("run-3", "L", testStart, testOutcomes())))

	// THEN one table with a row per outcome reaches the client
	require.Len(t, m.tables, 1)
	rows := m.tables[0].GetRows()
	assert.Len(t, rows.Rows, 4)
	assert.Len(t, rows.Schema, 12)
	assert.Equal(t, "run_id", rows.Schema[0].ColumnName)
	assert.Equal(t, gpb.SemanticType_TAG, rows.Schema[0].SemanticType)
	assert.Equal(t, gpb.SemanticType_TIMESTAMP, rows.Schema[11].SemanticType)
	assert.Equal(t, "run-3", rows.Rows[0].Values[0].GetStringValue())
}

func TestGreptimeDBWriter_EmptyAndError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, table: DefaultOutcomeTable}

	assert.NoError(t, w.WriteOutcomes(nil))
	assert.Empty(t, m.tables)

	err := w.WriteOutcomes(Rows("r", "L", testStart, testOutcomes()[:1]))
	assert.ErrorContains(t, err, "unavailable")
}

type recordingWriter struct {
	rows     int
	closed   bool
	failNext error
}

func (r *recordingWriter) WriteOutcomes(rows []OutcomeRow) error {
	if r.failNext != nil {
		return r.failNext
	}
	r.rows += len(rows)
	return nil
}

func (r *recordingWriter) Close() error {
	r.closed = true
	return nil
}

func TestMultiWriter(t *testing.T) {
	a, b := &recordingWriter{}, &recordingWriter{}
	mw := NewMultiWriter(a, nil, b)
	assert.Equal(t, 2, mw.Len())

	require.NoError(t, mw.WriteOutcomes(Rows("r", "L", testStart, testOutcomes())))
	assert.Equal(t, 4, a.rows)
	assert.Equal(t, 4, b.rows)

	a.failNext = errors.New("disk full")
	assert.Error(t, mw.WriteOutcomes(Rows("r", "L", testStart, testOutcomes())))
	assert.Equal(t, 4, b.rows, "later writers are skipped after a failure")

	require.NoError(t, mw.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
