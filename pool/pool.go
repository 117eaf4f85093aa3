// Package pool implements a bounded connection pool with a bounded FIFO
// wait queue. Connections are reused most-recently-returned first; waiters
// are served strictly in arrival order, each bounded by its own deadline.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/omartijn/ozo/conn"
	"github.com/omartijn/ozo/logger"
	"github.com/omartijn/ozo/ozoerr"
)

// Source constructs a new connection for a pool slot.
type Source func(ctx context.Context) (*conn.Connection, error)

// NewSource builds a Source that dials the given connection-info string
// through the driver, bounded by the connect timeout.
func NewSource(driver conn.Driver, conninfo string, connectTimeout time.Duration, reg *conn.Registry) Source {
	return func(ctx context.Context) (*conn.Connection, error) {
		return conn.Connect(ctx, driver, conninfo, conn.Within(connectTimeout), reg)
	}
}

// Config defines the pool bounds and timeouts. A QueueCapacity of 0 means
// acquires never wait: with no free connection and no open slot they fail
// immediately with pool_queue_overflow.
type Config struct {
	Capacity       int
	QueueCapacity  int
	ConnectTimeout time.Duration
	QueueTimeout   time.Duration
	IdleTimeout    time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:       10,
		QueueCapacity:  128,
		ConnectTimeout: 10 * time.Second,
		QueueTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Capacity  int
	Live      int
	Idle      int
	Waiters   int
	Hits      uint64
	Misses    uint64
	Timeouts  uint64
	Overflows uint64
	Discarded uint64
}

// grant is what a waiter receives: a connection, an open slot (both nil),
// or a terminal error.
type grant struct {
	c   *conn.Connection
	err error
}

type waiter struct {
	ch     chan grant
	served bool
}

type idleConn struct {
	c     *conn.Connection
	since time.Time
}

// Pool is a bounded set of reusable connections. All state transitions
// are serialized on one mutex; acquire, release and waiter-timeout are
// mutually atomic.
type Pool struct {
	cfg    Config
	source Source

	mu      sync.Mutex
	free    []idleConn // LIFO
	live    int
	waiters []*waiter // FIFO, head first
	closed  bool

	hits      uint64
	misses    uint64
	timeouts  uint64
	overflows uint64
	discarded uint64
}

// New creates a pool. Non-positive capacity falls back to the default.
func New(cfg Config, source Source) *Pool {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.QueueCapacity < 0 {
		cfg.QueueCapacity = 0
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	return &Pool{cfg: cfg, source: source}
}

// Config returns the pool configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// Acquire leases a connection: an idle one when available, a freshly
// constructed one when a slot is open, otherwise it joins the wait queue
// until a connection is handed over, the queue timeout or the caller's
// context expires, or the queue is full.
func (p *Pool) Acquire(ctx context.Context) (*conn.Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ozoerr.New(ozoerr.CodePoolClosed, "pool is closed").WithOp("pool.Acquire")
	}

	// Most recently returned first.
	if n := len(p.free); n > 0 {
		it := p.free[n-1]
		p.free = p.free[:n-1]
		if p.stale(it) {
			// The slot stays claimed; a fresh connection replaces the
			// stale one.
			p.discarded++
			p.mu.Unlock()
			go func() { _ = it.c.Close(context.Background()) }()
			logger.Debug("stale idle connection discarded", "conn_id", it.c.ID())
			return p.dial(ctx)
		}
		p.hits++
		p.mu.Unlock()
		return it.c, nil
	}

	if p.live < p.cfg.Capacity {
		p.live++
		p.misses++
		p.mu.Unlock()
		return p.dial(ctx)
	}

	if p.cfg.QueueCapacity <= 0 || len(p.waiters) >= p.cfg.QueueCapacity {
		p.overflows++
		p.mu.Unlock()
		return nil, ozoerr.New(ozoerr.CodePoolQueueOverflow, "wait queue is full").WithOp("pool.Acquire")
	}

	w := &waiter{ch: make(chan grant, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	waitCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.QueueTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.QueueTimeout)
		defer cancel()
	}

	select {
	case g := <-w.ch:
		if g.err != nil {
			return nil, g.err
		}
		if g.c != nil {
			return g.c, nil
		}
		return p.dial(ctx)
	case <-waitCtx.Done():
		return p.abandonWait(w, waitCtx.Err())
	}
}

// abandonWait removes a timed-out waiter. Removal is atomic with respect
// to hand-off: when the waiter was already served, the delivered grant is
// consumed and returned to the pool instead.
func (p *Pool) abandonWait(w *waiter, ctxErr error) (*conn.Connection, error) {
	p.mu.Lock()
	if w.served {
		p.mu.Unlock()
		g := <-w.ch
		switch {
		case g.err != nil:
		case g.c != nil:
			p.Release(g.c, false)
		default:
			p.releaseSlot()
		}
	} else {
		for i, q := range p.waiters {
			if q == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				break
			}
		}
		p.timeouts++
		p.mu.Unlock()
	}
	return nil, ozoerr.FromContext(ctxErr).WithOp("pool.Acquire")
}

// dial constructs a connection for a slot the caller already holds. On
// failure the slot is returned and may be granted to a waiter.
func (p *Pool) dial(ctx context.Context) (*conn.Connection, error) {
	c, err := p.source(ctx)
	if err != nil {
		if c != nil {
			go func() { _ = c.Close(context.Background()) }()
		}
		p.releaseSlot()
		return nil, err
	}
	return c, nil
}

// releaseSlot gives up one live slot, waking the head waiter with a
// dial-yourself grant when someone is queued.
func (p *Pool) releaseSlot() {
	p.mu.Lock()
	p.live--
	p.grantSlotLocked()
	p.mu.Unlock()
}

// grantSlotLocked hands an open slot to the head waiter, if any.
func (p *Pool) grantSlotLocked() {
	if len(p.waiters) == 0 || p.live >= p.cfg.Capacity || p.closed {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	w.served = true
	p.live++
	w.ch <- grant{}
}

// Release returns a leased connection. Bad or broken connections are
// dropped and their slot offered to the head waiter; healthy ones are
// handed to the head waiter directly or pushed onto the free list.
func (p *Pool) Release(c *conn.Connection, bad bool) {
	if c == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.live--
		p.mu.Unlock()
		go func() { _ = c.Close(context.Background()) }()
		return
	}

	broken := bad || !c.Usable()
	if broken {
		p.live--
		p.grantSlotLocked()
		p.mu.Unlock()
		go func() { _ = c.Close(context.Background()) }()
		return
	}

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		w.served = true
		w.ch <- grant{c: c}
		p.mu.Unlock()
		return
	}

	p.free = append(p.free, idleConn{c: c, since: time.Now()})
	p.mu.Unlock()
}

// Close tears the pool down: queued waiters fail with pool_closed and
// idle connections are closed. Leased connections are closed as they come
// back.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	ws := p.waiters
	p.waiters = nil
	frees := p.free
	p.free = nil
	p.live -= len(frees)
	p.mu.Unlock()

	closedErr := ozoerr.New(ozoerr.CodePoolClosed, "pool is closed").WithOp("pool.Acquire")
	for _, w := range ws {
		w.served = true
		w.ch <- grant{err: closedErr}
	}
	for _, it := range frees {
		_ = it.c.Close(context.Background())
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:  p.cfg.Capacity,
		Live:      p.live,
		Idle:      len(p.free),
		Waiters:   len(p.waiters),
		Hits:      p.hits,
		Misses:    p.misses,
		Timeouts:  p.timeouts,
		Overflows: p.overflows,
		Discarded: p.discarded,
	}
}

func (p *Pool) stale(it idleConn) bool {
	return p.cfg.IdleTimeout > 0 && time.Since(it.since) > p.cfg.IdleTimeout
}
