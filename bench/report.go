package bench

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Report is the outcome of one benchmark run.
type Report struct {
	RunID       string    `json:"run_id"`
	Scenario    string    `json:"scenario"`
	Query       string    `json:"query"`
	Threads     int       `json:"threads"`
	Coroutines  int       `json:"coroutines"`
	Connections int       `json:"connections"`
	Queue       int       `json:"queue"`
	Duration    float64   `json:"duration_seconds"`
	Requests    int64     `json:"requests"`
	Rows        int64     `json:"rows"`
	Errors      int64     `json:"errors"`
	RequestsSec float64   `json:"requests_per_second"`
	RowsSec     float64   `json:"rows_per_second"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func (r *runner) report(started, finished time.Time) *Report {
	requests, rows, errors := r.step.Snapshot()
	elapsed := finished.Sub(started).Seconds()
	rep := &Report{
		RunID:       uuid.NewString(),
		Scenario:    r.opts.Scenario,
		Query:       r.opts.Query,
		Threads:     r.opts.Threads,
		Coroutines:  r.opts.Coroutines,
		Connections: r.opts.Connections,
		Queue:       r.opts.Queue,
		Duration:    elapsed,
		Requests:    requests,
		Rows:        rows,
		Errors:      errors,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if elapsed > 0 {
		rep.RequestsSec = float64(requests) / elapsed
		rep.RowsSec = float64(rows) / elapsed
	}
	return rep
}

// Text renders the report as plain text.
func (rep *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rep.Scenario)
	fmt.Fprintf(&b, "query: %s\n", rep.Query)
	fmt.Fprintf(&b, "threads=%d coroutines=%d connections=%d queue=%d\n",
		rep.Threads, rep.Coroutines, rep.Connections, rep.Queue)
	fmt.Fprintf(&b, "duration: %.3fs\n", rep.Duration)
	fmt.Fprintf(&b, "requests: %d (%.1f/s)\n", rep.Requests, rep.RequestsSec)
	fmt.Fprintf(&b, "rows: %d (%.1f/s)\n", rep.Rows, rep.RowsSec)
	if rep.Errors > 0 {
		fmt.Fprintf(&b, "errors: %d\n", rep.Errors)
	}
	return b.String()
}

// JSON renders the report as indented JSON.
func (rep *Report) JSON() (string, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Render renders the report in the requested format.
func (rep *Report) Render(format string) (string, error) {
	if format == FormatJSON {
		return rep.JSON()
	}
	return rep.Text(), nil
}
