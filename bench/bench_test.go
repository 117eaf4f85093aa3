package bench

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalizeDefaults(t *testing.T) {
	opts := Options{Scenario: ScenarioUseConnectionPool}
	require.NoError(t, opts.Normalize())
	assert.Equal(t, 31*time.Second, opts.Duration)
	assert.Equal(t, 1, opts.Coroutines)
	assert.Equal(t, 1, opts.Connections)
	assert.Equal(t, 1, opts.Threads)
	assert.Equal(t, 0, opts.Queue)
	assert.Equal(t, QuerySimple, opts.Query)
	assert.Equal(t, FormatText, opts.Format)
}

func TestOptionsConnectionsDefaultToCoroutines(t *testing.T) {
	opts := Options{Scenario: ScenarioUseConnectionPool, Coroutines: 8}
	require.NoError(t, opts.Normalize())
	assert.Equal(t, 8, opts.Connections)
}

func TestOptionsRejectUnknowns(t *testing.T) {
	opts := Options{Scenario: "no_such_scenario"}
	assert.Error(t, opts.Normalize())

	opts = Options{Scenario: ScenarioUseConnectionPool, Query: "medium"}
	assert.Error(t, opts.Normalize())

	opts = Options{Scenario: ScenarioUseConnectionPool, Format: "xml"}
	assert.Error(t, opts.Normalize())
}

func TestBuildQuery(t *testing.T) {
	q := buildQuery(QuerySimple)
	assert.Equal(t, "SELECT 1", q.Text)
	assert.Empty(t, q.Params)

	q = buildQuery(QueryComplex)
	assert.Contains(t, q.Text, "FROM pg_type")
	assert.Contains(t, q.Text, "typtypmod = $1")
	require.Len(t, q.Params, 2)
	assert.Equal(t, []byte("-1"), q.Params[0])
}

func TestStepperCounts(t *testing.T) {
	s := newStepper(time.Minute)
	assert.True(t, s.Step(3))
	assert.True(t, s.Step(2))
	s.Fail()

	requests, rows, errors := s.Snapshot()
	assert.Equal(t, int64(2), requests)
	assert.Equal(t, int64(5), rows)
	assert.Equal(t, int64(1), errors)
}

func TestStepperStopsAtDeadline(t *testing.T) {
	s := newStepper(-time.Second)
	assert.False(t, s.Step(1))
}

func TestReportRender(t *testing.T) {
	rep := &Report{
		RunID:       "r-1",
		Scenario:    ScenarioUseConnectionPool,
		Query:       QuerySimple,
		Threads:     1,
		Coroutines:  2,
		Connections: 2,
		Duration:    10,
		Requests:    1000,
		Rows:        1000,
		RequestsSec: 100,
		RowsSec:     100,
	}

	text, err := rep.Render(FormatText)
	require.NoError(t, err)
	assert.Contains(t, text, ScenarioUseConnectionPool)
	assert.Contains(t, text, "requests: 1000 (100.0/s)")
	assert.NotContains(t, text, "errors:")

	jsonOut, err := rep.Render(FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.Contains(jsonOut, `"scenario": "use_connection_pool"`))
}

func TestHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()

	h, err := OpenHistory(dir)
	require.NoError(t, err)

	none, err := h.Last(ScenarioUseConnectionPool)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := &Report{RunID: "a", Scenario: ScenarioUseConnectionPool, RequestsSec: 50, FinishedAt: time.Now().Add(-time.Minute)}
	second := &Report{RunID: "b", Scenario: ScenarioUseConnectionPool, RequestsSec: 75, FinishedAt: time.Now()}
	require.NoError(t, h.Put(first))
	require.NoError(t, h.Put(second))

	// A different scenario does not pollute the lookup.
	other := &Report{RunID: "c", Scenario: ScenarioReuseConnection, RequestsSec: 10, FinishedAt: time.Now()}
	require.NoError(t, h.Put(other))

	last, err := h.Last(ScenarioUseConnectionPool)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "b", last.RunID)

	require.NoError(t, h.Close())
}
