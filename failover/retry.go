package failover

import (
	"context"
	"time"

	"github.com/omartijn/ozo/conn"
	"github.com/omartijn/ozo/logger"
	"github.com/omartijn/ozo/ozoerr"
)

// RetryStrategy retries an operation on matching error codes, degrading
// the time constraint so the remaining time is split evenly across the
// tries still available. An empty condition set retries on any error.
type RetryStrategy struct {
	conditions []ozoerr.Code
	times      int
}

// Retry builds a retry strategy for the given recoverable error codes.
// The strategy performs one try until Times raises the count.
func Retry(conditions ...ozoerr.Code) *RetryStrategy {
	return &RetryStrategy{conditions: conditions, times: 1}
}

// Times sets the total number of tries.
func (s *RetryStrategy) Times(n int) *RetryStrategy {
	if n < 1 {
		n = 1
	}
	s.times = n
	return s
}

// FirstTry implements Strategy. The operation's time constraint is
// resolved to an absolute deadline here so that successive tries divide
// what actually remains.
func (s *RetryStrategy) FirstTry(args Args) Try {
	args.TimeConstraint = args.TimeConstraint.Resolve(time.Now())
	return &retryTry{strategy: s, base: args, remain: s.times}
}

type retryTry struct {
	strategy *RetryStrategy
	base     Args
	remain   int
}

// Args returns the attempt tuple with the per-try share of the remaining
// time.
func (t *retryTry) Args() Args {
	args := t.base
	args.TimeConstraint = t.base.TimeConstraint.Divide(time.Now(), t.remain)
	return args
}

// NextTry implements Try. The failed attempt's connection is closed
// before the next try runs.
func (t *retryTry) NextTry(err error, c *conn.Connection) (Try, bool) {
	if c != nil {
		_ = c.Close(context.Background())
	}
	if t.remain <= 1 || !t.canRetry(err) {
		logger.Debug("failover: giving up", "error", err.Error(), "tries_left", t.remain-1)
		return nil, false
	}
	logger.Debug("failover: retrying", "error", err.Error(), "tries_left", t.remain-1)
	return &retryTry{strategy: t.strategy, base: t.base, remain: t.remain - 1}, true
}

func (t *retryTry) canRetry(err error) bool {
	if len(t.strategy.conditions) == 0 {
		return true
	}
	code := ozoerr.CodeOf(err)
	for _, c := range t.strategy.conditions {
		if code == c {
			return true
		}
	}
	return false
}
