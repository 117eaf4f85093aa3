package conn

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Sink receives result rows as the request pipeline reads them off the
// socket. Append is called once per row, synchronously with respect to the
// pipeline; the values slice is only valid for the duration of the call.
type Sink interface {
	Append(fields []Field, values [][]byte) error
}

// RowBuffer is the opaque sink: it retains every row as raw column values.
type RowBuffer struct {
	fields []Field
	rows   [][][]byte
}

// Append implements Sink. Values are copied, the native client reuses its
// read buffer between rows.
func (b *RowBuffer) Append(fields []Field, values [][]byte) error {
	if b.fields == nil {
		b.fields = fields
	}
	row := make([][]byte, len(values))
	for i, v := range values {
		if v != nil {
			row[i] = append([]byte(nil), v...)
		}
	}
	b.rows = append(b.rows, row)
	return nil
}

// Len returns the number of buffered rows.
func (b *RowBuffer) Len() int {
	return len(b.rows)
}

// Rows returns the buffered rows.
func (b *RowBuffer) Rows() [][][]byte {
	return b.rows
}

// Fields returns the column descriptions of the buffered result.
func (b *RowBuffer) Fields() []Field {
	return b.fields
}

// Reset drops all buffered rows, keeping the allocation.
func (b *RowBuffer) Reset() {
	b.rows = b.rows[:0]
	b.fields = nil
}

// ScanFunc converts one raw row into a value of type T.
type ScanFunc[T any] func(fields []Field, values [][]byte) (T, error)

// Collector is the typed sink: each row is converted by the scan function
// and appended to the destination slice.
type Collector[T any] struct {
	dest *[]T
	scan ScanFunc[T]
}

// Collect builds a typed sink around a destination slice and a scan
// function.
func Collect[T any](dest *[]T, scan ScanFunc[T]) *Collector[T] {
	return &Collector[T]{dest: dest, scan: scan}
}

// Append implements Sink.
func (c *Collector[T]) Append(fields []Field, values [][]byte) error {
	v, err := c.scan(fields, values)
	if err != nil {
		return err
	}
	*c.dest = append(*c.dest, v)
	return nil
}

// ScanRow decodes one row's columns into the given destinations using the
// type map. Destination count must match the column count.
func ScanRow(tm *pgtype.Map, fields []Field, values [][]byte, dest ...any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(values))
	}
	for i, v := range values {
		if err := tm.Scan(fields[i].DataTypeOID, fields[i].Format, v, dest[i]); err != nil {
			return fmt.Errorf("scan: column %q: %w", fields[i].Name, err)
		}
	}
	return nil
}
