package conn

import (
	"context"
)

// Query is an opaque parameterized query: text plus binary-bound parameters.
// Query-text composition happens elsewhere; the pipeline passes the triple
// through to the native client untouched.
type Query struct {
	Text      string
	Params    [][]byte
	ParamOIDs []uint32
}

// Field describes one column of a result set.
type Field struct {
	Name        string
	DataTypeOID uint32
	Format      int16
}

// Rows streams the result of a query. Next reports whether another row is
// available; Values returns the current row's raw column values. Close
// drains the stream and surfaces any deferred send or read error together
// with the number of rows the server reported as affected.
type Rows interface {
	Next() bool
	Values() [][]byte
	Fields() []Field
	Close() (int64, error)
}

// CancelToken is a detachable handle that cancels the in-flight request on
// its connection. The call is synchronous from the caller's point of view
// and may block for the duration of a network round-trip, so it must never
// run on a goroutine that services other pipeline work.
type CancelToken interface {
	Cancel(ctx context.Context) error
}

// NativeConn adapts the native client's connection handle. Exec performs
// the send phase exactly once; errors detected after the send surface from
// the returned Rows.
type NativeConn interface {
	Exec(ctx context.Context, q Query) Rows
	CancelToken() CancelToken
	Close(ctx context.Context) error
	IsClosed() bool
}

// Driver establishes native connections. The production driver wraps the
// pgconn connect state machine; tests substitute their own.
type Driver interface {
	Connect(ctx context.Context, conninfo string) (NativeConn, error)
}
