package querysql

import (
	"github.com/jackc/pgx/v5"

	"github.com/roach88/docquery/internal/fingerprint"
)

// Query is a compiled relational query.
type Query struct {
	Text   string
	Params []Param

	// CrossPartition is carried through from the condition for the executor.
	CrossPartition bool
}

// NamedArgs returns the bindings for pgx:
//
//	rows, err := pool.Query(ctx, q.Text, q.NamedArgs())
func (q *Query) NamedArgs() pgx.NamedArgs {
	args := make(pgx.NamedArgs, len(q.Params))
	for _, p := range q.Params {
		args[p.Name] = p.Value
	}
	return args
}

// Fingerprint returns a stable digest of the query text and bindings.
func (q *Query) Fingerprint() (string, error) {
	names := make([]string, len(q.Params))
	values := make([]any, len(q.Params))
	for i, p := range q.Params {
		names[i] = p.Name
		values[i] = p.Value
	}
	return fingerprint.Relational(q.Text, names, values)
}
