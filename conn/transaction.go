package conn

import (
	"context"
)

// Transaction holds a connection leased from a provider for the duration
// of an explicit transaction block. The lease is returned when the
// transaction ends.
type Transaction struct {
	c *Connection
	p Provider
}

// Begin leases a connection and opens a transaction on it.
func Begin(ctx context.Context, p Provider, tc TimeConstraint) (*Transaction, error) {
	c, err := p.Get(ctx, tc)
	if err != nil {
		if c != nil {
			c.MarkBad()
			p.Release(c, true)
		}
		return nil, err
	}
	if _, err := Execute(ctx, Single(c), Query{Text: "BEGIN"}, tc); err != nil {
		p.Release(c, true)
		return nil, err
	}
	return &Transaction{c: c, p: p}, nil
}

// Conn returns the connection the transaction runs on.
func (t *Transaction) Conn() *Connection {
	return t.c
}

// Request runs a query inside the transaction.
func (t *Transaction) Request(ctx context.Context, q Query, tc TimeConstraint, sink Sink) error {
	_, err := Request(ctx, Single(t.c), q, tc, sink)
	return err
}

// Commit ends the transaction and returns the lease.
func (t *Transaction) Commit(ctx context.Context, tc TimeConstraint) error {
	_, err := Execute(ctx, Single(t.c), Query{Text: "COMMIT"}, tc)
	t.p.Release(t.c, err != nil)
	return err
}

// Rollback aborts the transaction and returns the lease.
func (t *Transaction) Rollback(ctx context.Context, tc TimeConstraint) error {
	_, err := Execute(ctx, Single(t.c), Query{Text: "ROLLBACK"}, tc)
	t.p.Release(t.c, err != nil)
	return err
}
