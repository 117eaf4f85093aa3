package failover

import (
	"context"
	"time"

	"github.com/omartijn/ozo/conn"
	"github.com/omartijn/ozo/logger"
)

// RoundRobinStrategy walks a list of alternative connection providers in
// order, one try per provider, until one of them serves the operation.
// Each try receives a fresh copy of the original time constraint.
type RoundRobinStrategy struct {
	providers []conn.Provider
}

// RoundRobin builds a multi-host fallback strategy over the given
// providers. The original operation provider is ignored; the first listed
// provider serves the first try.
func RoundRobin(providers ...conn.Provider) *RoundRobinStrategy {
	return &RoundRobinStrategy{providers: providers}
}

// FirstTry implements Strategy.
func (s *RoundRobinStrategy) FirstTry(args Args) Try {
	return &roundRobinTry{strategy: s, base: args, index: 0}
}

type roundRobinTry struct {
	strategy *RoundRobinStrategy
	base     Args
	index    int
}

// Args substitutes the current alternative provider, keeping the rest of
// the tuple. The time constraint is re-resolved so every host gets the
// full window.
func (t *roundRobinTry) Args() Args {
	args := t.base
	if len(t.strategy.providers) > 0 {
		args.Provider = t.strategy.providers[t.index%len(t.strategy.providers)]
	}
	args.TimeConstraint = t.base.TimeConstraint.Resolve(time.Now())
	return args
}

// NextTry advances to the next provider until the list is exhausted.
func (t *roundRobinTry) NextTry(err error, c *conn.Connection) (Try, bool) {
	if c != nil {
		_ = c.Close(context.Background())
	}
	next := t.index + 1
	if next >= len(t.strategy.providers) {
		return nil, false
	}
	logger.Debug("failover: next host", "error", err.Error(), "host_index", next)
	return &roundRobinTry{strategy: t.strategy, base: t.base, index: next}, true
}
