package querysql

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// ErrRawTargetMismatch is returned when a raw condition was built for the
// document target.
var ErrRawTargetMismatch = errors.New("raw query was built for another target")

// DefaultDataColumn is the jsonb column holding each document.
const DefaultDataColumn = "data"

// Options configures a Compiler.
type Options struct {
	// DataColumn is the jsonb document column. Defaults to DefaultDataColumn.
	DataColumn string

	// JoinStrategy selects join compilation. Defaults to JoinStrategySubquery.
	JoinStrategy JoinStrategy

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Compiler compiles conditions to parameterized PostgreSQL.
//
// CRITICAL: All values are parameterized (never interpolated).
// A Compiler holds no per-query state and is safe for concurrent use.
type Compiler struct {
	opts Options
}

// NewCompiler creates a Compiler, filling in option defaults.
func NewCompiler(opts Options) *Compiler {
	if opts.DataColumn == "" {
		opts.DataColumn = DefaultDataColumn
	}
	if opts.JoinStrategy == "" {
		opts.JoinStrategy = JoinStrategySubquery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Compiler{opts: opts}
}

// Compile converts a condition into a SELECT over "collection"."partition".
//
// Raw relational conditions are returned unchanged.
func (c *Compiler) Compile(collection, partition string, cond *condition.Condition) (*Query, error) {
	if cond == nil {
		cond = condition.New()
	}
	if q, ok, err := c.raw(cond); ok || err != nil {
		return q, err
	}
	pred, err := queryir.Lower(cond)
	if err != nil {
		return nil, fmt.Errorf("lower condition: %w", err)
	}

	ctx := newQueryContext()
	r := &renderer{opts: c.opts, ctx: ctx}

	// Pass one: WHERE, recording join predicates.
	where, err := r.where(pred, c.rootScope())
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	// Pass two: projection, reading the recorded join predicates.
	ctx.recording = false
	selectList, from, err := r.projection(cond, c.rootScope())
	if err != nil {
		return nil, fmt.Errorf("compile projection: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", selectList, table(collection, partition))
	b.WriteString(from)
	b.WriteString(where)
	b.WriteString(orderBy(cond.Sort, c.opts.DataColumn))
	b.WriteString(paging(cond.Offset, cond.Limit))

	q := &Query{Text: b.String(), Params: ctx.Params(), CrossPartition: cond.CrossPartition}
	c.opts.Logger.Debug("compiled query",
		"target", condition.TargetRelational,
		"collection", collection,
		"partition", partition,
		"params", len(q.Params),
		"joins", len(ctx.joins.order))
	return q, nil
}

// Count compiles a condition into SELECT COUNT(*). Sort, paging and
// projection are ignored.
func (c *Compiler) Count(collection, partition string, cond *condition.Condition) (*Query, error) {
	if cond == nil {
		cond = condition.New()
	}
	if cond.Raw != nil {
		return nil, fmt.Errorf("count: raw conditions cannot be rewritten")
	}
	pred, err := queryir.Lower(cond)
	if err != nil {
		return nil, fmt.Errorf("lower condition: %w", err)
	}
	ctx := newQueryContext()
	r := &renderer{opts: c.opts, ctx: ctx}
	where, err := r.where(pred, c.rootScope())
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	q := &Query{
		Text:           fmt.Sprintf(`SELECT COUNT(*) AS "count" FROM %s%s`, table(collection, partition), where),
		Params:         ctx.Params(),
		CrossPartition: cond.CrossPartition,
	}
	c.opts.Logger.Debug("compiled count query", "collection", collection, "partition", partition, "params", len(q.Params))
	return q, nil
}

func (c *Compiler) raw(cond *condition.Condition) (*Query, bool, error) {
	if cond == nil || cond.Raw == nil {
		return nil, false, nil
	}
	if cond.Raw.Target != condition.TargetRelational {
		return nil, true, fmt.Errorf("%w: %s", ErrRawTargetMismatch, cond.Raw.Target)
	}
	params := make([]Param, len(cond.Raw.Params))
	for i, p := range cond.Raw.Params {
		params[i] = Param{Name: strings.TrimPrefix(p.Name, "@"), Value: p.Value}
	}
	return &Query{Text: cond.Raw.Text, Params: params, CrossPartition: cond.CrossPartition}, true, nil
}

func (c *Compiler) rootScope() scope {
	return scope{root: c.opts.DataColumn, docRoot: c.opts.DataColumn}
}

// where renders " WHERE <pred>", or nothing for an always-true predicate.
func (r *renderer) where(p queryir.Predicate, s scope) (string, error) {
	if k, ok := p.(queryir.Const); ok && k.Value {
		return "", nil
	}
	f, err := r.predicate(p, s)
	if err != nil {
		return "", err
	}
	return " WHERE " + f.sql, nil
}

func table(collection, partition string) string {
	if partition == "" {
		return quoteIdent(collection)
	}
	return quoteIdent(collection) + "." + quoteIdent(partition)
}

func orderBy(sort []condition.SortField, root string) string {
	if len(sort) == 0 {
		return ""
	}
	parts := make([]string, len(sort))
	for i, s := range sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts[i] = jsonAccessor(root, s.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// paging renders OFFSET and LIMIT; zero values are omitted.
func paging(offset, limit int) string {
	var b strings.Builder
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}
