package conn

import (
	"context"
	"time"

	"github.com/omartijn/ozo/ozoerr"
)

// Provider yields a leased Connection. Get transfers ownership of the
// returned connection to the caller; Release returns it, with bad
// reporting whether the lease ended in failure. Implementations decide
// between ephemeral-connect and pool-lease semantics.
type Provider interface {
	Get(ctx context.Context, tc TimeConstraint) (*Connection, error)
	Release(c *Connection, bad bool)
}

// InfoProvider creates a fresh connection per call from a connection-info
// string. Connections released as bad are closed; a good one stays open
// and belongs to the caller.
type InfoProvider struct {
	driver         Driver
	conninfo       string
	connectTimeout time.Duration
	registry       *Registry
}

// NewInfoProvider builds a provider around a connection-info string. The
// connect timeout bounds each dial; the operation's own time constraint
// tightens it further when it is the shorter of the two.
func NewInfoProvider(conninfo string, connectTimeout time.Duration) *InfoProvider {
	return &InfoProvider{
		driver:         DefaultDriver,
		conninfo:       conninfo,
		connectTimeout: connectTimeout,
	}
}

// WithDriver substitutes the native driver.
func (p *InfoProvider) WithDriver(d Driver) *InfoProvider {
	p.driver = d
	return p
}

// WithRegistry attaches a type registry; its oid map is loaded on every
// connect.
func (p *InfoProvider) WithRegistry(r *Registry) *InfoProvider {
	p.registry = r
	return p
}

// Get implements Provider.
func (p *InfoProvider) Get(ctx context.Context, tc TimeConstraint) (*Connection, error) {
	bound := tc.Min(p.connectTimeout, time.Now())
	return Connect(ctx, p.driver, p.conninfo, bound, p.registry)
}

// Release implements Provider. A successfully completed ephemeral
// connection stays open and belongs to the caller from here on; a bad one
// is closed.
func (p *InfoProvider) Release(c *Connection, bad bool) {
	if bad && c != nil {
		_ = c.Close(context.Background())
	}
}

// singleProvider hands out one already-established connection, for
// callers that obtained a connection once and reuse it across requests.
type singleProvider struct {
	c *Connection
}

// Single wraps an established connection as a Provider. Get fails when
// the connection is no longer usable; Release keeps the connection open
// unless the lease went bad.
func Single(c *Connection) Provider {
	return &singleProvider{c: c}
}

func (p *singleProvider) Get(ctx context.Context, tc TimeConstraint) (*Connection, error) {
	if p.c == nil || !p.c.Usable() {
		return p.c, ozoerr.New(ozoerr.CodeConnectionStatusBad, "connection is not usable").WithOp("conn.Single")
	}
	return p.c, nil
}

func (p *singleProvider) Release(c *Connection, bad bool) {
	if bad && c != nil {
		_ = c.Close(context.Background())
	}
}
