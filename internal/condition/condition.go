package condition

// Condition is a declarative, backend-agnostic query.
//
// Only Filter, Negative and Constant are meaningful on sub-conditions nested
// under $AND / $OR / $NOT; join bases, sort and paging are taken from the
// top-level Condition.
type Condition struct {
	// Filter holds the clauses in evaluation order.
	Filter Map

	Sort   []SortField
	Offset int
	// Limit of 0 means no limit.
	Limit int

	// Fields restricts the returned document to these dotted paths.
	Fields []string

	// Join lists array-valued paths whose child clauses are matched per element.
	Join []string

	// ReturnAllSubArray keeps joined arrays whole; when false only the
	// elements that satisfied the join clauses are returned.
	ReturnAllSubArray bool

	// Negative negates the whole compiled predicate.
	Negative bool

	// CrossPartition is carried through to the compiled query for the executor.
	CrossPartition bool

	// Raw bypasses compilation entirely.
	Raw *RawQuery

	// Constant marks an always-true or always-false condition.
	Constant Constant
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Direction is a sort direction used by Builder.Sort.
type Direction bool

const (
	Asc  Direction = false
	Desc Direction = true
)

// Constant marks a condition whose outcome does not depend on the document.
type Constant int

const (
	ConstNone Constant = iota
	ConstTrue
	ConstFalse
)

// True returns a condition matching every document.
func True() *Condition {
	return &Condition{Constant: ConstTrue, ReturnAllSubArray: true}
}

// False returns a condition matching no document.
func False() *Condition {
	return &Condition{Constant: ConstFalse, ReturnAllSubArray: true}
}

// FieldRef used as a filter value compares two fields of the same document
// instead of binding a literal.
type FieldRef string

// Ref returns a reference to the field at path.
func Ref(path string) FieldRef {
	return FieldRef(path)
}

// Target identifies a compilation backend.
type Target string

const (
	TargetRelational Target = "postgres"
	TargetDocument   Target = "mongo"
)

// ParseTarget accepts the canonical target names and their common aliases.
func ParseTarget(s string) (Target, bool) {
	switch s {
	case "postgres", "postgresql", "pg", "sql", "relational":
		return TargetRelational, true
	case "mongo", "mongodb", "document":
		return TargetDocument, true
	default:
		return "", false
	}
}

// RawQuery is a pre-built native query. Compilers return it unchanged.
type RawQuery struct {
	Target Target

	// Relational.
	Text   string
	Params []RawParam

	// Document. Filter and every pipeline stage are bson.D values.
	Filter   any
	Pipeline []any
}

// RawParam is a named binding of a raw relational query.
type RawParam struct {
	Name  string
	Value any
}

// RawSQL builds a raw relational condition.
func RawSQL(text string, params ...RawParam) *Condition {
	return &Condition{Raw: &RawQuery{Target: TargetRelational, Text: text, Params: params}}
}

// RawFilter builds a raw document-store filter condition.
func RawFilter(filter any) *Condition {
	return &Condition{Raw: &RawQuery{Target: TargetDocument, Filter: filter}}
}

// RawPipeline builds a raw document-store aggregation condition.
func RawPipeline(stages ...any) *Condition {
	return &Condition{Raw: &RawQuery{Target: TargetDocument, Pipeline: stages}}
}

// IsTrue reports whether the condition matches every document without
// inspecting it.
func (c *Condition) IsTrue() bool {
	if c == nil {
		return true
	}
	if c.Constant == ConstTrue {
		return !c.Negative
	}
	if c.Constant == ConstFalse {
		return c.Negative
	}
	return c.Raw == nil && c.Filter.Len() == 0 && !c.Negative
}

// New returns an empty condition that matches every document.
func New() *Condition {
	return &Condition{ReturnAllSubArray: true}
}

// Clone returns a copy that shares no slices or top-level filter storage
// with c. Filter values are not deep-copied.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	out := *c
	out.Filter = c.Filter.Clone()
	out.Sort = append([]SortField(nil), c.Sort...)
	out.Fields = append([]string(nil), c.Fields...)
	out.Join = append([]string(nil), c.Join...)
	return &out
}
