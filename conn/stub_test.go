package conn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// stubRows replays a fixed result set.
type stubRows struct {
	fields   []Field
	rows     [][][]byte
	idx      int
	affected int64
	closeErr error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Values() [][]byte {
	return r.rows[r.idx-1]
}

func (r *stubRows) Fields() []Field {
	return r.fields
}

func (r *stubRows) Close() (int64, error) {
	return r.affected, r.closeErr
}

// waitRows blocks in Next until the request context expires, simulating a
// long-running server-side query.
type waitRows struct {
	ctx context.Context
}

func (r *waitRows) Next() bool {
	<-r.ctx.Done()
	return false
}

func (r *waitRows) Values() [][]byte { return nil }
func (r *waitRows) Fields() []Field  { return nil }

func (r *waitRows) Close() (int64, error) {
	return 0, r.ctx.Err()
}

// stubCancelToken counts cancel calls and can block to simulate a slow
// native cancel.
type stubCancelToken struct {
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (t *stubCancelToken) Cancel(ctx context.Context) error {
	t.calls.Add(1)
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	return t.err
}

// stubNative is a scriptable native connection.
type stubNative struct {
	execFn func(ctx context.Context, q Query) Rows
	token  CancelToken
	closed atomic.Bool
}

func (n *stubNative) Exec(ctx context.Context, q Query) Rows {
	if n.execFn != nil {
		return n.execFn(ctx, q)
	}
	return &stubRows{}
}

func (n *stubNative) CancelToken() CancelToken {
	return n.token
}

func (n *stubNative) Close(ctx context.Context) error {
	n.closed.Store(true)
	return nil
}

func (n *stubNative) IsClosed() bool {
	return n.closed.Load()
}

// stubDriver dials scripted native connections.
type stubDriver struct {
	connect func(ctx context.Context, conninfo string) (NativeConn, error)
}

func (d *stubDriver) Connect(ctx context.Context, conninfo string) (NativeConn, error) {
	return d.connect(ctx, conninfo)
}

// newTestConnection returns an idle connection over the given native.
func newTestConnection(native NativeConn) *Connection {
	c := newConnection(native)
	c.setState(Idle)
	return c
}

// recordingProvider wraps a provider and records releases.
type recordingProvider struct {
	inner Provider

	mu       sync.Mutex
	released []bool
}

func (p *recordingProvider) Get(ctx context.Context, tc TimeConstraint) (*Connection, error) {
	return p.inner.Get(ctx, tc)
}

func (p *recordingProvider) Release(c *Connection, bad bool) {
	p.mu.Lock()
	p.released = append(p.released, bad)
	p.mu.Unlock()
	p.inner.Release(c, bad)
}

func (p *recordingProvider) releases() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.released...)
}
