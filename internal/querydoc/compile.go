package querydoc

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/queryir"
)

// ErrRawTargetMismatch is returned when a raw condition was built for the
// relational target.
var ErrRawTargetMismatch = errors.New("raw query was built for another target")

// Options configures a Compiler.
type Options struct {
	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Compiler compiles conditions to MongoDB queries.
// A Compiler holds no per-query state and is safe for concurrent use.
type Compiler struct {
	opts Options
}

// NewCompiler creates a Compiler, filling in option defaults.
func NewCompiler(opts Options) *Compiler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Compiler{opts: opts}
}

// Compile converts a condition into a query against database collection,
// collection partition. Conditions declaring joins compile to a pipeline.
//
// Raw document conditions are returned unchanged.
func (c *Compiler) Compile(collection, partition string, cond *condition.Condition) (*Query, error) {
	if cond == nil {
		cond = condition.New()
	}
	if q, ok, err := c.raw(collection, partition, cond); ok || err != nil {
		return q, err
	}
	pred, err := queryir.Lower(cond)
	if err != nil {
		return nil, fmt.Errorf("lower condition: %w", err)
	}

	ctx := newQueryContext()
	r := &renderer{ctx: ctx}
	filter, err := r.match(pred, scope{})
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	ctx.recording = false

	q := &Query{Database: collection, Collection: partition, CrossPartition: cond.CrossPartition}
	if len(cond.Join) == 0 {
		q.Find = &Find{
			Filter:     filter,
			Sort:       sortDoc(cond.Sort, nil),
			Projection: projection(cond.Fields),
			Skip:       int64(cond.Offset),
			Limit:      int64(cond.Limit),
		}
	} else {
		stages := matchStages(filter, cond.Sort, cond.Offset, cond.Limit, nil)
		if !cond.ReturnAllSubArray {
			reshaped, err := r.reshape()
			if err != nil {
				return nil, fmt.Errorf("compile projection: %w", err)
			}
			stages = append(stages, reshaped...)
		}
		if p := projection(cond.Fields); len(p) > 0 {
			stages = append(stages, bson.D{{Key: "$project", Value: p}})
		}
		q.Pipeline = stages
	}

	c.opts.Logger.Debug("compiled query",
		"target", condition.TargetDocument,
		"database", collection,
		"collection", partition,
		"stages", len(q.Pipeline),
		"joins", len(ctx.joins.order))
	return q, nil
}

// Count compiles a condition into a pipeline ending in {$count: "count"}.
// Sort, paging and projection are ignored.
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
	r := &renderer{ctx: newQueryContext()}
	filter, err := r.match(pred, scope{})
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	stages := matchStages(filter, nil, 0, 0, nil)
	stages = append(stages, bson.D{{Key: "$count", Value: "count"}})
	c.opts.Logger.Debug("compiled count query", "database", collection, "collection", partition)
	return &Query{Database: collection, Collection: partition, Pipeline: stages, CrossPartition: cond.CrossPartition}, nil
}

func (c *Compiler) raw(collection, partition string, cond *condition.Condition) (*Query, bool, error) {
	if cond == nil || cond.Raw == nil {
		return nil, false, nil
	}
	raw := cond.Raw
	if raw.Target != condition.TargetDocument {
		return nil, true, fmt.Errorf("%w: %s", ErrRawTargetMismatch, raw.Target)
	}
	q := &Query{Database: collection, Collection: partition, CrossPartition: cond.CrossPartition}
	if raw.Pipeline != nil {
		q.Pipeline = make([]bson.D, 0, len(raw.Pipeline))
		for i, stage := range raw.Pipeline {
			d, err := toDoc(stage)
			if err != nil {
				return nil, true, fmt.Errorf("raw pipeline stage %d: %w", i, err)
			}
			q.Pipeline = append(q.Pipeline, d)
		}
		return q, true, nil
	}
	filter := bson.D{}
	if raw.Filter != nil {
		d, err := toDoc(raw.Filter)
		if err != nil {
			return nil, true, fmt.Errorf("raw filter: %w", err)
		}
		filter = d
	}
	q.Find = &Find{Filter: filter}
	return q, true, nil
}

// toDoc accepts the document shapes a raw query may carry.
func toDoc(v any) (bson.D, error) {
	switch d := v.(type) {
	case bson.D:
		return d, nil
	case bson.M:
		return toBSON(queryir.Normalize(map[string]any(d))).(bson.D), nil
	case map[string]any, condition.Map:
		return toBSON(queryir.Normalize(d)).(bson.D), nil
	default:
		return nil, fmt.Errorf("expected a document, got %T", v)
	}
}

// matchStages renders $match, $sort, $skip and $limit, omitting empty ones.
func matchStages(filter bson.D, sort []condition.SortField, offset, limit int, rename map[string]string) []bson.D {
	var stages []bson.D
	if len(filter) > 0 {
		stages = append(stages, bson.D{{Key: "$match", Value: filter}})
	}
	if s := sortDoc(sort, rename); len(s) > 0 {
		stages = append(stages, bson.D{{Key: "$sort", Value: s}})
	}
	if offset > 0 {
		stages = append(stages, bson.D{{Key: "$skip", Value: int64(offset)}})
	}
	if limit > 0 {
		stages = append(stages, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return stages
}

func sortDoc(sort []condition.SortField, rename map[string]string) bson.D {
	if len(sort) == 0 {
		return nil
	}
	r := &renderer{rename: rename}
	d := make(bson.D, 0, len(sort))
	for _, s := range sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: r.name(s.Field, scope{}), Value: dir})
	}
	return d
}

// projection includes each field once; a field below another selected
// field is dropped. _id is excluded unless selected.
func projection(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	var kept []string
	for _, f := range fields {
		if f == "" || covered(f, fields) || slices.Contains(kept, f) {
			continue
		}
		kept = append(kept, f)
	}
	d := make(bson.D, 0, len(kept)+1)
	if !slices.Contains(kept, "_id") {
		d = append(d, bson.E{Key: "_id", Value: 0})
	}
	for _, f := range kept {
		d = append(d, bson.E{Key: f, Value: 1})
	}
	return d
}

// covered reports whether an ancestor of f is also selected.
func covered(f string, fields []string) bool {
	for _, g := range fields {
		if g != "" && strings.HasPrefix(f, g+".") {
			return true
		}
	}
	return false
}
