package querydoc

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roach88/docquery/internal/fingerprint"
)

// Query is a compiled document query. Exactly one of Find and Pipeline is
// set.
type Query struct {
	Database   string
	Collection string

	Find     *Find
	Pipeline []bson.D

	// Renames maps internal output names of an aggregate pipeline back to
	// the requested aliases; pass it to aggregate.Normalize.
	Renames map[string]string

	// CrossPartition is carried through from the condition for the executor.
	CrossPartition bool
}

// Find is a find-style query.
type Find struct {
	Filter     bson.D
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
}

// Options returns the driver options for Find:
//
//	cur, err := client.Database(q.Database).Collection(q.Collection).
//		Find(ctx, q.Find.Filter, q.Find.Options())
func (f *Find) Options() *options.FindOptions {
	opts := options.Find()
	if len(f.Sort) > 0 {
		opts.SetSort(f.Sort)
	}
	if len(f.Projection) > 0 {
		opts.SetProjection(f.Projection)
	}
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return opts
}

// Document returns the query as one ordered document, the shape used for
// fingerprints and CLI output.
func (q *Query) Document() bson.D {
	d := bson.D{{Key: "database", Value: q.Database}, {Key: "collection", Value: q.Collection}}
	if q.Pipeline != nil {
		return append(d, bson.E{Key: "pipeline", Value: q.Pipeline})
	}
	if f := q.Find; f != nil {
		d = append(d, bson.E{Key: "filter", Value: f.Filter})
		if len(f.Sort) > 0 {
			d = append(d, bson.E{Key: "sort", Value: f.Sort})
		}
		if len(f.Projection) > 0 {
			d = append(d, bson.E{Key: "projection", Value: f.Projection})
		}
		if f.Skip > 0 {
			d = append(d, bson.E{Key: "skip", Value: f.Skip})
		}
		if f.Limit > 0 {
			d = append(d, bson.E{Key: "limit", Value: f.Limit})
		}
	}
	return d
}

// MarshalExtJSON renders the query as relaxed extended JSON.
func (q *Query) MarshalExtJSON() ([]byte, error) {
	return bson.MarshalExtJSON(q.Document(), false, false)
}

// Fingerprint returns a stable digest of the compiled query.
func (q *Query) Fingerprint() (string, error) {
	kind := "find"
	if q.Pipeline != nil {
		kind = "pipeline"
	}
	return fingerprint.Document(kind, q.Document())
}
