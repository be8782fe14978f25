package condition

// Builder assembles a Condition fluently. Errors are deferred to Build.
//
//	cond, err := condition.Where("lastName", "Andersen", "age >=", 18).
//		Join("children").
//		Sort("age", condition.Desc).
//		Limit(10).
//		Build()
type Builder struct {
	c   Condition
	err error
}

// Where starts a builder with the given key/value clauses.
func Where(kv ...any) *Builder {
	b := &Builder{c: Condition{ReturnAllSubArray: true}}
	return b.And(kv...)
}

// And appends more key/value clauses. An existing key is replaced in place.
func (b *Builder) And(kv ...any) *Builder {
	if b.err != nil {
		return b
	}
	m, err := pairs(kv)
	if err != nil {
		b.err = newValidationError(ErrCodeInvalidArguments, "", "%s", err.Error())
		return b
	}
	for k, v := range m.All() {
		b.c.Filter.Set(k, v)
	}
	return b
}

func (b *Builder) Join(paths ...string) *Builder {
	b.c.Join = append(b.c.Join, paths...)
	return b
}

func (b *Builder) Sort(field string, dir Direction) *Builder {
	b.c.Sort = append(b.c.Sort, SortField{Field: field, Desc: bool(dir)})
	return b
}

func (b *Builder) Offset(n int) *Builder {
	b.c.Offset = n
	return b
}

func (b *Builder) Limit(n int) *Builder {
	b.c.Limit = n
	return b
}

func (b *Builder) Fields(paths ...string) *Builder {
	b.c.Fields = append(b.c.Fields, paths...)
	return b
}

// Not negates the whole condition.
func (b *Builder) Not() *Builder {
	b.c.Negative = !b.c.Negative
	return b
}

func (b *Builder) ReturnAllSubArray(v bool) *Builder {
	b.c.ReturnAllSubArray = v
	return b
}

func (b *Builder) CrossPartition() *Builder {
	b.c.CrossPartition = true
	return b
}

// Build validates and returns a copy of the assembled condition.
func (b *Builder) Build() (*Condition, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.c.Clone()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// package-level fixtures.
func (b *Builder) MustBuild() *Condition {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}
