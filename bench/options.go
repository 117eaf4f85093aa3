// Package bench implements the benchmark scenarios of the client library:
// request throughput against a live server over ephemeral connections, a
// reused connection or the connection pool, with optional typed result
// parsing and multi-threaded pool sharing.
package bench

import (
	"fmt"
	"time"
)

// Query selection.
const (
	QuerySimple  = "simple"
	QueryComplex = "complex"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Scenario names.
const (
	ScenarioReuseConnectionInfo               = "reuse_connection_info"
	ScenarioReuseConnectionInfoAndParseResult = "reuse_connection_info_and_parse_result"
	ScenarioReuseConnection                   = "reuse_connection"
	ScenarioReuseConnectionAndParseResult     = "reuse_connection_and_parse_result"
	ScenarioUseConnectionPool                 = "use_connection_pool"
	ScenarioUseConnectionPoolAndParseResult   = "use_connection_pool_and_parse_result"
	ScenarioUseConnectionPoolMultThreads      = "use_connection_pool_mult_threads"
)

// Scenarios lists the supported scenario names in their canonical order.
var Scenarios = []string{
	ScenarioReuseConnectionInfo,
	ScenarioReuseConnectionInfoAndParseResult,
	ScenarioReuseConnection,
	ScenarioReuseConnectionAndParseResult,
	ScenarioUseConnectionPool,
	ScenarioUseConnectionPoolAndParseResult,
	ScenarioUseConnectionPoolMultThreads,
}

// Options configures a benchmark run.
type Options struct {
	Scenario    string
	Duration    time.Duration
	Coroutines  int // concurrent tasks per thread group
	Connections int // pool capacity, defaults to Coroutines
	Threads     int // thread groups sharing the pool
	Queue       int // pool queue capacity
	ConnInfo    string
	Query       string // simple | complex
	Format      string // text | json
	Verbose     bool

	// Harness extensions.
	Listen     string // address of the live-stats endpoint, empty to disable
	HistoryDir string // run-history store directory, empty to disable
	CPUProfile string
	MemProfile string
}

// Normalize applies defaults and validates the option set.
func (o *Options) Normalize() error {
	if o.Duration <= 0 {
		o.Duration = 31 * time.Second
	}
	if o.Coroutines <= 0 {
		o.Coroutines = 1
	}
	if o.Connections <= 0 {
		o.Connections = o.Coroutines
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.Queue < 0 {
		o.Queue = 0
	}
	if o.Query == "" {
		o.Query = QuerySimple
	}
	if o.Query != QuerySimple && o.Query != QueryComplex {
		return fmt.Errorf("unknown query %q", o.Query)
	}
	if o.Format == "" {
		o.Format = FormatText
	}
	if o.Format != FormatText && o.Format != FormatJSON {
		return fmt.Errorf("unknown format %q", o.Format)
	}
	if _, ok := scenarios[o.Scenario]; !ok {
		return fmt.Errorf("unknown scenario %q", o.Scenario)
	}
	return nil
}
