package conn

import (
	"context"
	"sync"
	"time"

	"github.com/omartijn/ozo/executor"
	"github.com/omartijn/ozo/logger"
	"github.com/omartijn/ozo/ozoerr"
)

// Handler receives the outcome of an asynchronous operation together with
// the connection it ran on. A handler is invoked exactly once.
type Handler func(err error, c *Connection)

// handlerCell owns a handler until its first (and only) firing.
type handlerCell struct {
	mu sync.Mutex
	h  Handler
}

func (hc *handlerCell) take() Handler {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	h := hc.h
	hc.h = nil
	return h
}

// Cancel issues an out-of-band cancel for the connection's in-flight
// request. The native cancel call is synchronous, so it is posted onto the
// executor rather than run inline; the wait for it races the connection
// timer armed with the time constraint. Whichever finishes first fires the
// handler; the loser finds the handler cell empty. The connection is
// closed before the handler runs, on every path. When the timer wins the
// posted cancel keeps executing and closes the connection again on its own
// completion, which is a no-op.
func Cancel(c *Connection, exec *executor.Executor, tc TimeConstraint, h Handler) {
	if exec == nil {
		exec = executor.System()
	}

	token := c.CancelToken()
	if token == nil {
		c.SetErrorContext("call failed due to probably bad state of the connection")
		c.MarkBad()
		_ = c.Close(context.Background())
		h(ozoerr.New(ozoerr.CodeGetCancelFailed, "cancel token unavailable").WithOp("conn.Cancel"), c)
		return
	}

	cell := &handlerCell{h: h}

	if !tc.IsNone() {
		wait := tc.Resolve(time.Now()).Remaining(time.Now())
		if wait < 0 {
			wait = 0
		}
		c.armTimer(wait, func() {
			if fire := cell.take(); fire != nil {
				c.SetErrorContext("cancel operation waiting aborted by time-out")
				c.MarkBad()
				_ = c.Close(context.Background())
				fire(ozoerr.New(ozoerr.CodeOperationAborted, "cancel wait timed out").WithOp("conn.Cancel"), c)
			}
		})
	}

	postErr := exec.Post(func() {
		err := token.Cancel(context.Background())
		c.disarmTimer()
		fire := cell.take()
		if fire == nil {
			// Timer won the race; finish the abandoned cancel by making
			// sure the connection is down.
			_ = c.Close(context.Background())
			logger.Debug("late cancel completion discarded", "conn_id", c.ID())
			return
		}
		if err != nil {
			c.SetErrorContext(err.Error())
			c.MarkBad()
			_ = c.Close(context.Background())
			fire(ozoerr.Wrap(err, ozoerr.CodeCancelFailed, "native cancel failed").WithOp("conn.Cancel"), c)
			return
		}
		_ = c.Close(context.Background())
		fire(nil, c)
	})
	if postErr != nil {
		c.disarmTimer()
		if fire := cell.take(); fire != nil {
			c.MarkBad()
			_ = c.Close(context.Background())
			fire(ozoerr.Wrap(postErr, ozoerr.CodeOperationAborted, "cancel could not be scheduled").WithOp("conn.Cancel"), c)
		}
	}
}
