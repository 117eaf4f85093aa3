package bench

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/omartijn/ozo/conn"
)

// Benchmark queries. The simple query measures raw round-trip cost; the
// complex one reads twelve pg_type columns through a composite predicate
// so that result decoding dominates.
func buildQuery(kind string) conn.Query {
	if kind == QueryComplex {
		return conn.Query{
			Text: "SELECT typname, typnamespace, typowner, typlen, typbyval, typcategory, " +
				"typispreferred, typisdefined, typdelim, typrelid, typelem, typarray " +
				"FROM pg_type WHERE typtypmod = $1 AND typisdefined = $2",
			Params: [][]byte{[]byte("-1"), []byte("true")},
		}
	}
	return conn.Query{Text: "SELECT 1"}
}

// PgTypeRow is the typed shape of the complex query's result.
type PgTypeRow struct {
	Typname        string
	Typnamespace   uint32
	Typowner       uint32
	Typlen         int16
	Typbyval       bool
	Typcategory    byte
	Typispreferred bool
	Typisdefined   bool
	Typdelim       byte
	Typrelid       uint32
	Typelem        uint32
	Typarray       uint32
}

func scanInt32(tm *pgtype.Map) conn.ScanFunc[int32] {
	return func(fields []conn.Field, values [][]byte) (int32, error) {
		var v int32
		err := conn.ScanRow(tm, fields, values, &v)
		return v, err
	}
}

func scanPgTypeRow(tm *pgtype.Map) conn.ScanFunc[PgTypeRow] {
	return func(fields []conn.Field, values [][]byte) (PgTypeRow, error) {
		var r PgTypeRow
		err := conn.ScanRow(tm, fields, values,
			&r.Typname, &r.Typnamespace, &r.Typowner, &r.Typlen, &r.Typbyval,
			&r.Typcategory, &r.Typispreferred, &r.Typisdefined, &r.Typdelim,
			&r.Typrelid, &r.Typelem, &r.Typarray)
		return r, err
	}
}
