package bench

import (
	"sync/atomic"
	"time"
)

// stepper counts completed requests and observed rows until the run
// deadline. Step is safe for concurrent use; every scenario worker calls
// it after a successful request.
type stepper struct {
	deadline time.Time
	requests atomic.Int64
	rows     atomic.Int64
	errors   atomic.Int64
}

func newStepper(d time.Duration) *stepper {
	return &stepper{deadline: time.Now().Add(d)}
}

// Step records one completed request with the given row count and reports
// whether the run should continue.
func (s *stepper) Step(rows int) bool {
	s.requests.Add(1)
	s.rows.Add(int64(rows))
	return time.Now().Before(s.deadline)
}

// Fail records a failed request. Failed requests do not count towards
// throughput.
func (s *stepper) Fail() {
	s.errors.Add(1)
}

// Snapshot returns the current counters.
func (s *stepper) Snapshot() (requests, rows, errors int64) {
	return s.requests.Load(), s.rows.Load(), s.errors.Load()
}
