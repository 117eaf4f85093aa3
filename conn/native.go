package conn

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultDriver is the pgconn-backed driver used unless a provider is
// configured otherwise.
var DefaultDriver Driver = pgDriver{}

// pgDriver adapts pgconn as the native client. The connect readiness
// state machine lives inside pgconn.Connect; socket polling is driven by
// the runtime netpoller, so cancelling the context cancels the pending
// poll.
type pgDriver struct{}

func (pgDriver) Connect(ctx context.Context, conninfo string) (NativeConn, error) {
	pc, err := pgconn.Connect(ctx, conninfo)
	if err != nil {
		return nil, err
	}
	return &pgNativeConn{pc: pc}, nil
}

type pgNativeConn struct {
	pc *pgconn.PgConn
}

func (c *pgNativeConn) Exec(ctx context.Context, q Query) Rows {
	rr := c.pc.ExecParams(ctx, q.Text, q.Params, q.ParamOIDs, nil, nil)
	return &pgRows{rr: rr}
}

func (c *pgNativeConn) CancelToken() CancelToken {
	if c.pc == nil || c.pc.IsClosed() {
		return nil
	}
	return pgCancelToken{pc: c.pc}
}

func (c *pgNativeConn) Close(ctx context.Context) error {
	return c.pc.Close(ctx)
}

func (c *pgNativeConn) IsClosed() bool {
	return c.pc.IsClosed()
}

// pgCancelToken keeps a reference to the native handle and issues the
// out-of-band cancel request over its own socket. Safe to call while the
// request pipeline still owns the connection.
type pgCancelToken struct {
	pc *pgconn.PgConn
}

func (t pgCancelToken) Cancel(ctx context.Context) error {
	return t.pc.CancelRequest(ctx)
}

type pgRows struct {
	rr     *pgconn.ResultReader
	fields []Field
}

func (r *pgRows) Next() bool {
	return r.rr.NextRow()
}

func (r *pgRows) Values() [][]byte {
	return r.rr.Values()
}

func (r *pgRows) Fields() []Field {
	if r.fields == nil {
		descs := r.rr.FieldDescriptions()
		r.fields = make([]Field, len(descs))
		for i, d := range descs {
			r.fields[i] = Field{
				Name:        d.Name,
				DataTypeOID: d.DataTypeOID,
				Format:      d.Format,
			}
		}
	}
	return r.fields
}

func (r *pgRows) Close() (int64, error) {
	tag, err := r.rr.Close()
	return tag.RowsAffected(), err
}

// ServerMessage extracts the server-reported error text from an error
// chain, or returns an empty string for purely client-side failures.
func ServerMessage(err error) string {
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return pge.Message
	}
	return ""
}
