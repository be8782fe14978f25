package aggregate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/docquery/internal/condition"
)

// Spec is a caller-facing aggregate request.
type Spec struct {
	// Function lists the aggregate functions, comma separated.
	Function string

	GroupBy []string

	// Condition filters documents before grouping. Nil matches all.
	Condition *condition.Condition

	// After filters, sorts and pages the aggregated rows. Its filter keys,
	// sort fields and projections address output aliases.
	After *condition.Condition
}

// Func is an aggregate function.
type Func string

const (
	FuncCount Func = "COUNT"
	FuncSum   Func = "SUM"
	FuncAvg   Func = "AVG"
	FuncMin   Func = "MIN"
	FuncMax   Func = "MAX"
)

// Function is one parsed aggregate function.
type Function struct {
	Func  Func
	Arg   string // field path, or "*" for row counts
	Alias string
}

// CountsRows reports whether f counts rows rather than values of a field.
func (f Function) CountsRows() bool {
	return f.Func == FuncCount && f.Arg == "*"
}

// Group is one group-by key.
type Group struct {
	Path  string
	Alias string
}

// Plan is a validated aggregate.
type Plan struct {
	Functions []Function
	Groups    []Group
	Pre       *condition.Condition
	Post      *condition.Condition
}

// Grouped reports whether the plan has group-by keys.
func (p *Plan) Grouped() bool {
	return len(p.Groups) > 0
}

// HasPost reports whether the plan needs a post-aggregate stage.
func (p *Plan) HasPost() bool {
	if p.Post == nil {
		return false
	}
	return !p.Post.IsTrue() || len(p.Post.Sort) > 0 || p.Post.Offset > 0 || p.Post.Limit > 0
}

// ParseError reports a malformed aggregate specification.
type ParseError struct {
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid aggregate %q: %s", e.Input, e.Message)
}

var functionPattern = regexp.MustCompile(`(?i)^([a-z_]+)\s*\(\s*([^()]*?)\s*\)(?:\s+(?:as\s+)?(\S+))?$`)

// Parse validates s and builds a Plan.
func Parse(s Spec) (*Plan, error) {
	fns, err := ParseFunctions(s.Function)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Functions: fns, Pre: s.Condition, Post: s.After}

	seen := make(map[string]bool, len(fns)+len(s.GroupBy))
	for _, fn := range fns {
		seen[fn.Alias] = true
	}
	for _, path := range s.GroupBy {
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, &ParseError{Input: strings.Join(s.GroupBy, ","), Message: "empty group-by field"}
		}
		segs := strings.Split(path, ".")
		alias := segs[len(segs)-1]
		if seen[alias] {
			return nil, &ParseError{Input: path, Message: fmt.Sprintf("duplicate output name %q", alias)}
		}
		seen[alias] = true
		plan.Groups = append(plan.Groups, Group{Path: path, Alias: alias})
	}

	for _, c := range []*condition.Condition{s.Condition, s.After} {
		if c == nil {
			continue
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	if s.After != nil && len(s.After.Join) > 0 {
		return nil, &ParseError{Input: s.Function, Message: "post-aggregate condition cannot declare joins"}
	}
	return plan, nil
}

// ParseFunctions parses a comma-separated function list.
func ParseFunctions(input string) ([]Function, error) {
	items := splitTopLevel(input)
	if len(items) == 0 {
		return nil, &ParseError{Input: input, Message: "no aggregate function"}
	}
	fns := make([]Function, 0, len(items))
	seen := make(map[string]bool, len(items))
	positional := 0
	for _, item := range items {
		m := functionPattern.FindStringSubmatch(item)
		if m == nil {
			return nil, &ParseError{Input: item, Message: "expected FUNC(field) [AS alias]"}
		}
		fn := Function{Func: Func(strings.ToUpper(m[1])), Arg: m[2], Alias: m[3]}
		switch fn.Func {
		case FuncCount, FuncSum, FuncAvg, FuncMin, FuncMax:
		default:
			return nil, &ParseError{Input: item, Message: fmt.Sprintf("unsupported function %s", m[1])}
		}
		if fn.Arg == "" {
			return nil, &ParseError{Input: item, Message: "missing argument"}
		}
		if fn.Func == FuncCount && (fn.Arg == "1" || fn.Arg == "*") {
			fn.Arg = "*"
		} else if fn.Arg == "*" {
			return nil, &ParseError{Input: item, Message: fmt.Sprintf("%s requires a field", fn.Func)}
		}
		if fn.Alias == "" {
			positional++
			fn.Alias = fmt.Sprintf("$%d", positional)
		}
		if seen[fn.Alias] {
			return nil, &ParseError{Input: item, Message: fmt.Sprintf("duplicate output name %q", fn.Alias)}
		}
		seen[fn.Alias] = true
		fns = append(fns, fn)
	}
	return fns, nil
}

// splitTopLevel splits on commas outside parentheses, dropping blanks.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	flush := func(end int) {
		if item := strings.TrimSpace(s[start:end]); item != "" {
			out = append(out, item)
		}
	}
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return out
}
