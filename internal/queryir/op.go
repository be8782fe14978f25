package queryir

import (
	"regexp"
	"strings"
)

// Op is a clause operator.
//
// The set is closed except for OpUnknown, which carries any uppercase
// function token the compilers pass through as a generic binary function.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpStartsWith
	OpContains
	OpLike
	OpRegexMatch
	OpArrayContains
	OpArrayContainsAny
	OpArrayContainsAll
	OpIsDefined
	OpIsNumber
	OpIsString
	OpIsBool
	OpIsArray
	OpIsObject
	OpIsNull
	OpUnknown
)

var opNames = [...]string{
	OpEq:               "=",
	OpNe:               "!=",
	OpLt:               "<",
	OpLe:               "<=",
	OpGt:               ">",
	OpGe:               ">=",
	OpIn:               "IN",
	OpStartsWith:       "STARTSWITH",
	OpContains:         "CONTAINS",
	OpLike:             "LIKE",
	OpRegexMatch:       "REGEXMATCH",
	OpArrayContains:    "ARRAY_CONTAINS",
	OpArrayContainsAny: "ARRAY_CONTAINS_ANY",
	OpArrayContainsAll: "ARRAY_CONTAINS_ALL",
	OpIsDefined:        "IS_DEFINED",
	OpIsNumber:         "IS_NUMBER",
	OpIsString:         "IS_STRING",
	OpIsBool:           "IS_BOOL",
	OpIsArray:          "IS_ARRAY",
	OpIsObject:         "IS_OBJECT",
	OpIsNull:           "IS_NULL",
	OpUnknown:          "UNKNOWN",
}

var opByToken = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		if Op(op) != OpUnknown {
			m[name] = Op(op)
		}
	}
	m["=="] = OpEq
	m["<>"] = OpNe
	return m
}()

var functionToken = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "UNKNOWN"
	}
	return opNames[o]
}

// ParseOp resolves an operator token. Known operators match
// case-insensitively; any other uppercase identifier yields OpUnknown.
// ok is false for tokens that are not operators at all.
func ParseOp(token string) (op Op, ok bool) {
	if op, found := opByToken[strings.ToUpper(token)]; found {
		return op, true
	}
	if functionToken.MatchString(token) {
		return OpUnknown, true
	}
	return OpUnknown, false
}

// IsComparison reports whether o is one of = != < <= > >=.
func (o Op) IsComparison() bool {
	return o >= OpEq && o <= OpGe
}

// IsStringMatch reports whether o is a string function.
func (o Op) IsStringMatch() bool {
	return o >= OpStartsWith && o <= OpRegexMatch
}

// IsArray reports whether o tests array contents.
func (o Op) IsArray() bool {
	return o >= OpArrayContains && o <= OpArrayContainsAll
}

// IsTypeCheck reports whether o is IS_DEFINED or one of the IS_<TYPE> checks.
func (o Op) IsTypeCheck() bool {
	return o >= OpIsDefined && o <= OpIsNull
}

// JSONType returns the JSON type name tested by an IS_<TYPE> operator.
func (o Op) JSONType() string {
	switch o {
	case OpIsNumber:
		return "number"
	case OpIsString:
		return "string"
	case OpIsBool:
		return "boolean"
	case OpIsArray:
		return "array"
	case OpIsObject:
		return "object"
	case OpIsNull:
		return "null"
	default:
		return ""
	}
}
