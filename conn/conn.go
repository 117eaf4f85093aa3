// Package conn implements the request pipeline of the client library: the
// connection object, the connect and request pipelines, the cancel
// operation and the connection providers they are built from.
package conn

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omartijn/ozo/logger"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	// Disconnected means the connection holds no usable native handle.
	Disconnected State = iota
	// Connecting means the connect pipeline is driving the handle.
	Connecting
	// Idle means the connection is established and has no request in flight.
	Idle
	// Busy means a request pipeline currently owns the connection.
	Busy
	// Bad means an error occurred; the state is sticky and the pool
	// discards such connections.
	Bad
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case Bad:
		return "bad"
	}
	return "unknown"
}

// Connection owns one native handle together with the mutable state the
// pipelines need: the lifecycle state, the last library-level error text,
// the oid map populated at connect time and a deadline timer slot. A
// Connection has exactly one holder at any instant; none of its methods
// are meant for concurrent use by multiple owners, though state inspection
// is internally synchronized because the cancel operation may observe a
// connection owned by a request pipeline.
type Connection struct {
	id     string
	native NativeConn

	mu         sync.Mutex
	state      State
	errContext string
	oidMap     map[uint32]string
	timer      *time.Timer
}

func newConnection(native NativeConn) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		native: native,
		state:  Connecting,
	}
}

// ID returns the connection's identifier used for log correlation.
func (c *Connection) ID() string {
	return c.id
}

// Native returns the adapted native handle, or nil when disconnected.
func (c *Connection) Native() NativeConn {
	return c.native
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions the lifecycle state. Bad is sticky.
func (c *Connection) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Bad {
		return
	}
	c.state = s
}

// MarkBad moves the connection to the terminal Bad state.
func (c *Connection) MarkBad() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Bad
}

// Usable reports whether the connection can serve another request.
func (c *Connection) Usable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Idle && c.native != nil && !c.native.IsClosed()
}

// SetErrorContext records the last human-readable library-level failure.
func (c *Connection) SetErrorContext(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errContext = msg
}

// ErrorContext returns the last recorded library-level failure text.
func (c *Connection) ErrorContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errContext
}

// TypeName resolves a server type oid against the map loaded at connect
// time. The second result reports whether the oid is known.
func (c *Connection) TypeName(oid uint32) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.oidMap[oid]
	return name, ok
}

func (c *Connection) setOIDMap(m map[uint32]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oidMap = m
}

// CancelToken obtains a detachable cancel handle for the in-flight
// request, or nil when the connection is in an unusable state.
func (c *Connection) CancelToken() CancelToken {
	if c.native == nil {
		return nil
	}
	return c.native.CancelToken()
}

// Close disarms the timer, closes the native handle and leaves the
// connection disconnected. Bad remains Bad.
func (c *Connection) Close(ctx context.Context) error {
	c.disarmTimer()
	c.mu.Lock()
	native := c.native
	c.native = nil
	if c.state != Bad {
		c.state = Disconnected
	}
	c.mu.Unlock()
	if native == nil || native.IsClosed() {
		return nil
	}
	logger.Debug("closing connection", "conn_id", c.id)
	return native.Close(ctx)
}

// armTimer schedules f after d, replacing any previously armed deadline.
// The connection carries at most one armed timer at a time.
func (c *Connection) armTimer(d time.Duration, f func()) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, f)
	c.mu.Unlock()
}

// disarmTimer stops the armed deadline, if any.
func (c *Connection) disarmTimer() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}
