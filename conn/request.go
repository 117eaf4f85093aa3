package conn

import (
	"context"
	"time"

	"github.com/omartijn/ozo/executor"
	"github.com/omartijn/ozo/logger"
	"github.com/omartijn/ozo/ozoerr"
)

// oobCancelWait bounds how long the out-of-band cancel issued on a request
// timeout may keep its connection around.
const oobCancelWait = 5 * time.Second

// Request runs a parameterized query on a connection leased from the
// provider, streaming result rows into the sink. The time constraint is
// resolved at entry and covers the whole acquire/send/consume cycle. The
// connection is released back to its provider on every exit path; on error
// it is released as bad and returned alongside the error so the caller can
// inspect its error context and the server message.
func Request(ctx context.Context, p Provider, q Query, tc TimeConstraint, sink Sink) (*Connection, error) {
	return request(ctx, nil, p, q, tc, sink)
}

// Execute is the result-less variant of Request.
func Execute(ctx context.Context, p Provider, q Query, tc TimeConstraint) (*Connection, error) {
	return request(ctx, nil, p, q, tc, nil)
}

// RequestWithExecutor is Request with an explicit executor for the
// out-of-band cancel issued when the time constraint fires mid-request.
func RequestWithExecutor(ctx context.Context, exec *executor.Executor, p Provider, q Query, tc TimeConstraint, sink Sink) (*Connection, error) {
	return request(ctx, exec, p, q, tc, sink)
}

// RequestAsync adapts the request pipeline to completion-handler form.
// The handler fires exactly once, from a separate goroutine.
func RequestAsync(ctx context.Context, p Provider, q Query, tc TimeConstraint, sink Sink, h Handler) {
	cell := &handlerCell{h: h}
	go func() {
		c, err := request(ctx, nil, p, q, tc, sink)
		if fire := cell.take(); fire != nil {
			fire(err, c)
		}
	}()
}

func request(ctx context.Context, exec *executor.Executor, p Provider, q Query, tc TimeConstraint, sink Sink) (*Connection, error) {
	tc = tc.Resolve(time.Now())
	opCtx, cancel := tc.Apply(ctx)
	defer cancel()

	c, err := p.Get(opCtx, tc)
	if err != nil {
		if c != nil {
			c.MarkBad()
			p.Release(c, true)
		}
		return c, err
	}
	c.setState(Busy)

	// Send happens exactly once; errors detected after the send surface
	// from the row stream below.
	rows := c.native.Exec(opCtx, q)

	var sinkErr error
	for rows.Next() {
		if sink == nil {
			continue
		}
		if err := sink.Append(rows.Fields(), rows.Values()); err != nil {
			sinkErr = err
			break
		}
	}
	_, closeErr := rows.Close()

	if sinkErr != nil {
		c.SetErrorContext("error while processing result rows")
		c.MarkBad()
		p.Release(c, true)
		return c, ozoerr.Wrap(sinkErr, ozoerr.CodeBadResultProcess, "result processing failed").WithOp("conn.Request")
	}

	if closeErr != nil {
		if ctxErr := opCtx.Err(); ctxErr != nil {
			// The time constraint fired while a suspension was pending:
			// the socket wait is already cancelled, the server-side query
			// is cancelled out-of-band, the connection is discarded.
			issueOutOfBandCancel(c, exec)
			c.MarkBad()
			p.Release(c, true)
			return c, ozoerr.FromContext(ctxErr).WithOp("conn.Request")
		}
		if c.ErrorContext() == "" {
			c.SetErrorContext("error while executing request")
		}
		c.MarkBad()
		p.Release(c, true)
		return c, closeErr
	}

	c.setState(Idle)
	p.Release(c, false)
	return c, nil
}

// issueOutOfBandCancel asks the server to abandon the in-flight query.
// The completion is discarded; the cancel operation closes the connection
// on its own.
func issueOutOfBandCancel(c *Connection, exec *executor.Executor) {
	Cancel(c, exec, Within(oobCancelWait), func(err error, cc *Connection) {
		if err != nil {
			logger.Debug("out-of-band cancel failed",
				"conn_id", cc.ID(), "error", err.Error())
		}
	})
}
