package pool

import (
	"context"
	"time"

	"github.com/omartijn/ozo/conn"
)

// Provider adapts the pool to the connection-provider interface used by
// the request pipeline. The operation's time constraint tightens the
// pool's own queue timeout when it is the shorter of the two.
type Provider struct {
	pool *Pool
}

// Provider returns the pool's connection provider.
func (p *Pool) Provider() *Provider {
	return &Provider{pool: p}
}

// Get implements conn.Provider.
func (p *Provider) Get(ctx context.Context, tc conn.TimeConstraint) (*conn.Connection, error) {
	tc = tc.Resolve(time.Now())
	ctx, cancel := tc.Apply(ctx)
	defer cancel()
	return p.pool.Acquire(ctx)
}

// Release implements conn.Provider.
func (p *Provider) Release(c *conn.Connection, bad bool) {
	p.pool.Release(c, bad)
}
