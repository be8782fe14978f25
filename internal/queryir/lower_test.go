package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docquery/internal/condition"
)

func lower(t *testing.T, b *condition.Builder) Predicate {
	t.Helper()
	c, err := b.Build()
	require.NoError(t, err)
	p, err := Lower(c)
	require.NoError(t, err)
	return p
}

func TestLower_SimpleClauses(t *testing.T) {
	p := lower(t, condition.Where("lastName", "Andersen", "age >=", 18))

	assert.Equal(t, And{Predicates: []Predicate{
		Simple{Field: "lastName", Op: OpEq, Token: "=", Value: "Andersen"},
		Simple{Field: "age", Op: OpGe, Token: ">=", Value: 18},
	}}, p)
}

func TestLower_CollectionSemanticsSplit(t *testing.T) {
	membership := lower(t, condition.Where("skills", []string{"a", "b"}))
	equality := lower(t, condition.Where("skills =", []string{"a", "b"}))

	assert.Equal(t, Simple{Field: "skills", Op: OpIn, Token: "IN", Value: []any{"a", "b"}}, membership)
	assert.Equal(t, Simple{Field: "skills", Op: OpEq, Token: "=", Value: []any{"a", "b"}}, equality)
	assert.NotEqual(t, membership, equality)
}

func TestLower_NilMeansIsNull(t *testing.T) {
	assert.Equal(t, Simple{Field: "a", Op: OpIsNull, Token: "=", Value: true}, lower(t, condition.Where("a", nil)))
	assert.Equal(t, Simple{Field: "a", Op: OpIsNull, Token: "!=", Value: false}, lower(t, condition.Where("a !=", nil)))
}

func TestLower_ConstantFolding(t *testing.T) {
	plain := lower(t, condition.Where("x", 1))

	withTrue := lower(t, condition.Where("x", 1, "$AND", condition.True()))
	assert.Equal(t, plain, withTrue)

	withFalse := lower(t, condition.Where("x", 1, "$AND", condition.False()))
	assert.Equal(t, Const{Value: false}, withFalse)

	orTrue := lower(t, condition.Where("x", 1, "$OR", []*condition.Condition{condition.True(), condition.Where("y", 2).MustBuild()}))
	assert.Equal(t, plain, orTrue)

	orFalse := lower(t, condition.Where("$OR", []*condition.Condition{condition.False(), condition.Where("y", 2).MustBuild()}))
	assert.Equal(t, Simple{Field: "y", Op: OpEq, Token: "=", Value: 2}, orFalse)

	assert.Equal(t, Const{Value: true}, lower(t, condition.Where()))
	assert.Equal(t, Const{Value: false}, lower(t, condition.Where("$OR", []*condition.Condition{})))
	assert.Equal(t, Const{Value: false}, lower(t, condition.Where("$NOT", condition.True())))
}

func TestLower_EmptyCollections(t *testing.T) {
	assert.Equal(t, Const{Value: false}, lower(t, condition.Where("tags", []string{})))
	assert.Equal(t, Const{Value: false}, lower(t, condition.Where("tags ARRAY_CONTAINS_ANY", []string{})))
	assert.Equal(t, Const{Value: false}, lower(t, condition.Where("tags ARRAY_CONTAINS_ALL", []any{})))
}

func TestLower_GroupsAndNegation(t *testing.T) {
	p := lower(t, condition.Where(
		"a", 1,
		"$OR", condition.M("b", 2, "c", 3),
		"$OR 2", condition.M("d", 4, "e", 5),
		"$NOT", condition.M("f", 6),
	))

	require.IsType(t, And{}, p)
	and := p.(And)
	require.Len(t, and.Predicates, 4)
	assert.IsType(t, AnyOf{}, and.Predicates[1])
	assert.IsType(t, AnyOf{}, and.Predicates[2])
	assert.Equal(t, Not{Predicate: Simple{Field: "f", Op: OpEq, Token: "=", Value: 6}}, and.Predicates[3])

	neg := lower(t, condition.Where("a", 1).Not())
	assert.Equal(t, Not{Predicate: Simple{Field: "a", Op: OpEq, Token: "=", Value: 1}}, neg)
}

func TestLower_OrFamily(t *testing.T) {
	p := lower(t, condition.Where("first OR last STARTSWITH", "A"))
	assert.Equal(t, Or{Fields: []string{"first", "last"}, Op: OpStartsWith, Token: "STARTSWITH", Value: "A"}, p)
}

func TestLower_JoinScoped(t *testing.T) {
	p := lower(t, condition.Where("children.grade >", 5).Join("children"))

	assert.Equal(t, SimpleInJoin{
		Base:  "children",
		Path:  "children",
		Inner: Simple{Field: "grade", Op: OpGt, Token: ">", Value: 5},
	}, p)
}

func TestLower_NestedJoinLongestMatch(t *testing.T) {
	p := lower(t, condition.Where("children.toys.name", "ball").Join("children.toys", "children"))

	assert.Equal(t, SimpleInJoin{
		Base: "children",
		Path: "children",
		Inner: SimpleInJoin{
			Base:  "toys",
			Path:  "children.toys",
			Inner: Simple{Field: "name", Op: OpEq, Token: "=", Value: "ball"},
		},
	}, p)
}

func TestLower_ExactBaseScoping(t *testing.T) {
	// element comparison on a scalar array
	p := lower(t, condition.Where("tags STARTSWITH", "go").Join("tags"))
	assert.Equal(t, SimpleInJoin{
		Base:  "tags",
		Path:  "tags",
		Inner: Simple{Field: "", Op: OpStartsWith, Token: "STARTSWITH", Value: "go"},
	}, p)

	// array operators apply to the array itself
	p = lower(t, condition.Where("tags ARRAY_CONTAINS", "go").Join("tags"))
	assert.Equal(t, Simple{Field: "tags", Op: OpArrayContains, Token: "ARRAY_CONTAINS", Value: "go"}, p)

	// collection equality compares the whole array
	p = lower(t, condition.Where("tags =", []string{"a"}).Join("tags"))
	assert.Equal(t, Simple{Field: "tags", Op: OpEq, Token: "=", Value: []any{"a"}}, p)
}

func TestLower_SubQueryInJoin(t *testing.T) {
	p := lower(t, condition.Where("children.pets ARRAY_CONTAINS_ANY name", []string{"rex"}).Join("children"))

	assert.Equal(t, SubQueryInJoin{
		Base: "children",
		Path: "children",
		Inner: SubQuery{
			Field:     "pets",
			FilterKey: "name",
			Op:        OpArrayContainsAny,
			Values:    []any{"rex"},
		},
	}, p)
}

func TestLower_ElemMatchGroupsPerElement(t *testing.T) {
	p := lower(t, condition.Where(
		"$ELEM_MATCH", condition.M("children.a", 1, "children.b", 1),
	).Join("children"))

	assert.Equal(t, ElemMatchInJoin{
		Base: "children",
		Path: "children",
		Inner: []Predicate{
			Simple{Field: "a", Op: OpEq, Token: "=", Value: 1},
			Simple{Field: "b", Op: OpEq, Token: "=", Value: 1},
		},
	}, p)
}

func TestLower_ElemMatchNested(t *testing.T) {
	p := lower(t, condition.Where(
		"$ELEM_MATCH", condition.M(
			"children.grade", 5,
			"children.toys.name", "ball",
			"children.toys.color", "red",
		),
	).Join("children", "children.toys"))

	assert.Equal(t, ElemMatchInJoin{
		Base: "children",
		Path: "children",
		Inner: []Predicate{
			Simple{Field: "grade", Op: OpEq, Token: "=", Value: 5},
			ElemMatchInJoin{
				Base: "toys",
				Path: "children.toys",
				Inner: []Predicate{
					Simple{Field: "name", Op: OpEq, Token: "=", Value: "ball"},
					Simple{Field: "color", Op: OpEq, Token: "=", Value: "red"},
				},
			},
		},
	}, p)
}

func TestLower_OrFamilyAcrossScopesRejected(t *testing.T) {
	c := condition.Where("children.a OR b", 1).Join("children").MustBuild()
	_, err := Lower(c)
	require.Error(t, err)
	assert.True(t, condition.HasCode(err, condition.ErrCodeInvalidKey))
}

func TestLower_FieldRefRequiresComparison(t *testing.T) {
	c := condition.Where("a STARTSWITH", condition.Ref("b")).MustBuild()
	_, err := Lower(c)
	require.Error(t, err)
	assert.True(t, condition.IsValidationError(err))

	p := lower(t, condition.Where("a <", condition.Ref("b")))
	assert.Equal(t, Simple{Field: "a", Op: OpLt, Token: "<", Value: condition.FieldRef("b")}, p)
}

func TestLower_DoesNotMutateCondition(t *testing.T) {
	c := condition.Where("skills", []string{"a"}, "$OR", condition.M("x", 1)).Join("children").MustBuild()
	before := c.Clone()

	_, err := Lower(c)
	require.NoError(t, err)
	assert.Equal(t, before, c)
}

func TestLower_RawRejected(t *testing.T) {
	_, err := Lower(condition.RawSQL("SELECT 1"))
	assert.Error(t, err)
}

func TestHasJoin(t *testing.T) {
	assert.False(t, HasJoin(lower(t, condition.Where("a", 1))))
	assert.True(t, HasJoin(lower(t, condition.Where("a", 1, "$OR", condition.M("c.x", 1, "d", 2)).Join("c"))))
}
