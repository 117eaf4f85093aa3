package conn

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/omartijn/ozo/logger"
	"github.com/omartijn/ozo/ozoerr"
)

// oidMapQuery resolves server oids for registered type names right after
// the connection is established.
const oidMapQuery = "SELECT oid, typname FROM pg_type"

// Connect drives the connect pipeline: it dials through the driver under
// the given time constraint, verifies the resulting handle and populates
// the oid map when the registry is non-empty. On failure the returned
// Connection is Bad and carries the error context; on success it is Idle.
func Connect(ctx context.Context, driver Driver, conninfo string, tc TimeConstraint, reg *Registry) (*Connection, error) {
	tc = tc.Resolve(time.Now())
	ctx, cancel := tc.Apply(ctx)
	defer cancel()

	c := newConnection(nil)
	native, err := driver.Connect(ctx, conninfo)
	if err != nil {
		c.MarkBad()
		if c.ErrorContext() == "" {
			c.SetErrorContext("error while connection polling")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c, ozoerr.FromContext(ctxErr).WithOp("conn.Connect")
		}
		return c, ozoerr.Wrap(err, ozoerr.CodeConnectPollFailed, "connect polling failed").WithOp("conn.Connect")
	}
	c.native = native

	if native.IsClosed() {
		c.MarkBad()
		c.SetErrorContext("native client reported bad connection status")
		return c, ozoerr.New(ozoerr.CodeConnectionStatusBad, "connection status is bad").WithOp("conn.Connect")
	}

	if !reg.Empty() {
		if err := loadOIDMap(ctx, c, reg); err != nil {
			c.MarkBad()
			_ = c.Close(context.Background())
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c, ozoerr.FromContext(ctxErr).WithOp("conn.Connect")
			}
			return c, ozoerr.Wrap(err, ozoerr.CodeOidRequestFailed, "requesting type oids failed").WithOp("conn.Connect")
		}
	}

	c.setState(Idle)
	logger.Debug("connection established", "conn_id", c.ID())
	return c, nil
}

func loadOIDMap(ctx context.Context, c *Connection, reg *Registry) error {
	rows := c.native.Exec(ctx, Query{Text: oidMapQuery})
	tm := pgtype.NewMap()
	m := make(map[uint32]string)
	for rows.Next() {
		fields := rows.Fields()
		values := rows.Values()
		if len(fields) < 2 || len(values) < 2 {
			continue
		}
		var oid uint32
		var name string
		if err := tm.Scan(fields[0].DataTypeOID, fields[0].Format, values[0], &oid); err != nil {
			_, _ = rows.Close()
			return err
		}
		if err := tm.Scan(fields[1].DataTypeOID, fields[1].Format, values[1], &name); err != nil {
			_, _ = rows.Close()
			return err
		}
		if reg.contains(name) {
			m[oid] = name
		}
	}
	if _, err := rows.Close(); err != nil {
		return err
	}
	c.setOIDMap(m)
	return nil
}
