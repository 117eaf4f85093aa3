package bench

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sync/errgroup"

	"github.com/omartijn/ozo/conn"
	"github.com/omartijn/ozo/logger"
	"github.com/omartijn/ozo/pool"
)

// Per-request bounds shared by every scenario.
const (
	connectTimeout = time.Second
	requestTimeout = time.Second
)

type scenarioFunc func(r *runner, ctx context.Context) error

var scenarios = map[string]scenarioFunc{
	ScenarioReuseConnectionInfo:               (*runner).reuseConnectionInfo,
	ScenarioReuseConnectionInfoAndParseResult: (*runner).reuseConnectionInfo,
	ScenarioReuseConnection:                   (*runner).reuseConnection,
	ScenarioReuseConnectionAndParseResult:     (*runner).reuseConnection,
	ScenarioUseConnectionPool:                 (*runner).useConnectionPool,
	ScenarioUseConnectionPoolAndParseResult:   (*runner).useConnectionPool,
	ScenarioUseConnectionPoolMultThreads:      (*runner).useConnectionPoolMultThreads,
}

func parsesResult(scenario string) bool {
	switch scenario {
	case ScenarioReuseConnectionInfoAndParseResult,
		ScenarioReuseConnectionAndParseResult,
		ScenarioUseConnectionPoolAndParseResult:
		return true
	}
	return false
}

type runner struct {
	opts  Options
	query conn.Query
	step  *stepper
	parse bool
}

// Run executes one benchmark scenario and returns its report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	r := &runner{
		opts:  opts,
		query: buildQuery(opts.Query),
		step:  newStepper(opts.Duration),
		parse: parsesResult(opts.Scenario),
	}

	profiles, err := startProfiles(opts.CPUProfile, opts.MemProfile)
	if err != nil {
		return nil, err
	}
	defer profiles.stop()

	var stats *statServer
	if opts.Listen != "" {
		stats = serveStats(opts.Listen, r)
		defer stats.shutdown()
	}

	logger.Info("benchmark started",
		"scenario", opts.Scenario, "query", opts.Query,
		"threads", opts.Threads, "coroutines", opts.Coroutines,
		"connections", opts.Connections, "queue", opts.Queue)

	started := time.Now()
	runErr := scenarios[opts.Scenario](r, ctx)
	finished := time.Now()
	if runErr != nil {
		return nil, runErr
	}

	rep := r.report(started, finished)
	if opts.HistoryDir != "" {
		if err := recordHistory(opts.HistoryDir, rep); err != nil {
			logger.Warn("run history not recorded", "error", err.Error())
		}
	}
	return rep, nil
}

// makeSink returns the per-request sink plus a row-count accessor. The
// opaque buffer is used unless the scenario parses results, in which case
// rows are decoded into typed slices as they stream in. The type map is
// per worker; its scan-plan cache is not safe for concurrent use.
func (r *runner) makeSink(tm *pgtype.Map) (conn.Sink, func() int) {
	if r.parse {
		if r.opts.Query == QueryComplex {
			rows := new([]PgTypeRow)
			return conn.Collect(rows, scanPgTypeRow(tm)), func() int { return len(*rows) }
		}
		rows := new([]int32)
		return conn.Collect(rows, scanInt32(tm)), func() int { return len(*rows) }
	}
	buf := &conn.RowBuffer{}
	return buf, buf.Len
}

// reuseConnectionInfo opens a fresh connection for every request. The
// completed connection belongs to the caller, so each one is closed before
// the next round.
func (r *runner) reuseConnectionInfo(ctx context.Context) error {
	provider := conn.NewInfoProvider(r.opts.ConnInfo, connectTimeout)
	tm := pgtype.NewMap()
	for {
		sink, count := r.makeSink(tm)
		c, err := conn.Request(ctx, provider, r.query, conn.Within(requestTimeout), sink)
		if err != nil {
			return err
		}
		_ = c.Close(context.Background())
		if !r.step.Step(count()) {
			return nil
		}
	}
}

// reuseConnection connects once and runs every request on that
// connection.
func (r *runner) reuseConnection(ctx context.Context) error {
	provider := conn.NewInfoProvider(r.opts.ConnInfo, connectTimeout)
	c, err := provider.Get(ctx, conn.Within(connectTimeout))
	if err != nil {
		return err
	}
	defer c.Close(context.Background())
	return r.requestLoop(ctx, conn.Single(c))
}

// useConnectionPool shares one pool among the configured number of
// concurrent tasks.
func (r *runner) useConnectionPool(ctx context.Context) error {
	p := r.newPool()
	defer p.Close()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.opts.Coroutines; i++ {
		g.Go(func() error {
			return r.requestLoop(ctx, p.Provider())
		})
	}
	return g.Wait()
}

// useConnectionPoolMultThreads shares one pool among several thread
// groups. Request errors terminate the failing worker without counting
// towards throughput; the remaining workers keep running.
func (r *runner) useConnectionPoolMultThreads(ctx context.Context) error {
	p := r.newPool()
	defer p.Close()

	var g errgroup.Group
	for t := 0; t < r.opts.Threads; t++ {
		for i := 0; i < r.opts.Coroutines; i++ {
			g.Go(func() error {
				provider := p.Provider()
				tm := pgtype.NewMap()
				for {
					sink, count := r.makeSink(tm)
					_, err := conn.Request(ctx, provider, r.query, conn.Within(requestTimeout), sink)
					if err != nil {
						r.step.Fail()
						logger.Debug("benchmark request failed", "error", err.Error())
						return nil
					}
					if !r.step.Step(count()) {
						return nil
					}
				}
			})
		}
	}
	return g.Wait()
}

func (r *runner) requestLoop(ctx context.Context, provider conn.Provider) error {
	tm := pgtype.NewMap()
	for {
		sink, count := r.makeSink(tm)
		if _, err := conn.Request(ctx, provider, r.query, conn.Within(requestTimeout), sink); err != nil {
			return err
		}
		if !r.step.Step(count()) {
			return nil
		}
	}
}

func (r *runner) newPool() *pool.Pool {
	return pool.New(pool.Config{
		Capacity:       r.opts.Connections,
		QueueCapacity:  r.opts.Queue,
		ConnectTimeout: connectTimeout,
		QueueTimeout:   requestTimeout,
		IdleTimeout:    time.Minute,
	}, pool.NewSource(conn.DefaultDriver, r.opts.ConnInfo, connectTimeout, nil))
}
