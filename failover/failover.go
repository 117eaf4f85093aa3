// Package failover provides a retry/fallback harness for database
// operations. A strategy turns one operation invocation into a sequence of
// tries, each carrying its own connection provider and time constraint;
// the composite operation re-invokes the wrapped one until a try succeeds
// or the strategy is exhausted.
package failover

import (
	"context"

	"github.com/omartijn/ozo/conn"
	"github.com/omartijn/ozo/executor"
)

// Args is the argument tuple of one operation attempt.
type Args struct {
	Provider       conn.Provider
	TimeConstraint conn.TimeConstraint
	Query          conn.Query
	Sink           conn.Sink
}

// Operation is an operation initiator: it starts the work described by
// args and reports the outcome to the handler exactly once.
type Operation func(ctx context.Context, args Args, h conn.Handler)

// Try is a single attempt context. Args returns the argument tuple for
// this attempt; NextTry consumes the try and produces its successor given
// the attempt's error and (possibly bad) connection, or reports that the
// error is not recoverable. A try is consumed at most once.
type Try interface {
	Args() Args
	NextTry(err error, c *conn.Connection) (Try, bool)
}

// Strategy produces the first try for an operation invocation.
type Strategy interface {
	FirstTry(args Args) Try
}

// Compose wraps an operation with a strategy, yielding an operation of
// identical shape. On error the strategy decides whether another try
// follows; unrecovered errors are forwarded verbatim together with the
// connection of the failed attempt.
func Compose(op Operation, s Strategy) Operation {
	return func(ctx context.Context, args Args, h conn.Handler) {
		initiate(ctx, op, s.FirstTry(args), h)
	}
}

func initiate(ctx context.Context, op Operation, t Try, h conn.Handler) {
	op(ctx, t.Args(), func(err error, c *conn.Connection) {
		if err != nil {
			if next, ok := t.NextTry(err, c); ok {
				initiate(ctx, op, next, h)
				return
			}
		}
		h(err, c)
	})
}

// RequestOp is the request pipeline as a failover operation. The executor
// serves the out-of-band cancels of timed-out attempts; nil selects the
// system executor.
func RequestOp(exec *executor.Executor) Operation {
	return func(ctx context.Context, args Args, h conn.Handler) {
		go func() {
			c, err := conn.RequestWithExecutor(ctx, exec, args.Provider, args.Query, args.TimeConstraint, args.Sink)
			h(err, c)
		}()
	}
}
