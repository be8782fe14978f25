package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docquery/internal/aggregate"
	"github.com/roach88/docquery/internal/condition"
)

// LoadError represents an error that occurred while reading a query file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// QueryFile is a decoded query document:
//
//	collection: families
//	partition: oslo
//	target: mongo
//	condition: {filter: {...}, sort: [...], join: [...]}
//	aggregate: {function: "COUNT(1) AS n", groupBy: [...], condition: {...}, after: {...}}
//
// A document with neither condition nor aggregate is read as a bare
// condition, minus the envelope keys.
type QueryFile struct {
	Path       string
	Collection string
	Partition  string
	Target     string
	Condition  *condition.Condition
	Aggregate  *aggregate.Spec
}

var envelopeKeys = []string{"collection", "partition", "target", "condition", "aggregate"}

// LoadQueryFile reads and decodes a .yaml, .yml, .json or .cue query file.
func LoadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error reading query file: %v", err)}
	}

	var doc condition.Map
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		doc, err = parseYAML(data)
	case ".cue":
		doc, err = parseCUE(path, data)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported file type %q: use .yaml, .json or .cue", filepath.Ext(path))}
	}
	if err != nil {
		return nil, err
	}

	qf, err := decodeQueryFile(doc)
	if err != nil {
		return nil, err
	}
	qf.Path = path
	return qf, nil
}

func decodeQueryFile(doc condition.Map) (*QueryFile, error) {
	qf := &QueryFile{}
	for _, key := range []string{"collection", "partition", "target"} {
		v, ok := doc.Get(key)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, shapeError("%s must be a string, got %T", key, v)
		}
		switch key {
		case "collection":
			qf.Collection = s
		case "partition":
			qf.Partition = s
		case "target":
			qf.Target = s
		}
	}

	condDoc, hasCond := doc.Get("condition")
	aggDoc, hasAgg := doc.Get("aggregate")
	if !hasCond && !hasAgg {
		var bare condition.Map
		for k, v := range doc.All() {
			if !slices.Contains(envelopeKeys, k) {
				bare.Set(k, v)
			}
		}
		condDoc, hasCond = bare, true
	}

	if hasCond {
		c, err := decodeCondition("condition", condDoc)
		if err != nil {
			return nil, err
		}
		qf.Condition = c
	}
	if hasAgg {
		spec, err := decodeAggregate(aggDoc)
		if err != nil {
			return nil, err
		}
		qf.Aggregate = spec
	}
	return qf, nil
}

func decodeCondition(field string, v any) (*condition.Condition, error) {
	if v == nil {
		return condition.New(), nil
	}
	m, ok := v.(condition.Map)
	if !ok {
		return nil, shapeError("%s must be a map, got %T", field, v)
	}
	c, err := condition.Decode(m)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidCondition, Message: fmt.Sprintf("%s: %v", field, err)}
	}
	return c, nil
}

func decodeAggregate(v any) (*aggregate.Spec, error) {
	m, ok := v.(condition.Map)
	if !ok {
		return nil, shapeError("aggregate must be a map, got %T", v)
	}
	spec := &aggregate.Spec{}
	for key, val := range m.All() {
		switch key {
		case "function":
			s, ok := val.(string)
			if !ok {
				return nil, shapeError("aggregate.function must be a string, got %T", val)
			}
			spec.Function = s
		case "groupBy":
			groups, err := stringList("aggregate.groupBy", val)
			if err != nil {
				return nil, err
			}
			spec.GroupBy = groups
		case "condition":
			c, err := decodeCondition("aggregate.condition", val)
			if err != nil {
				return nil, err
			}
			spec.Condition = c
		case "after":
			c, err := decodeCondition("aggregate.after", val)
			if err != nil {
				return nil, err
			}
			spec.After = c
		default:
			return nil, shapeError("unknown aggregate key %q", key)
		}
	}
	if spec.Function == "" {
		return nil, shapeError("aggregate.function is required")
	}
	return spec, nil
}

func stringList(field string, v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, shapeError("%s[%d] must be a string, got %T", field, i, elem)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, shapeError("%s must be a string or list, got %T", field, v)
	}
}

func shapeError(format string, args ...any) *LoadError {
	return &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf(format, args...)}
}

// LoadDocuments reads a YAML or JSON list of sample documents.
func LoadDocuments(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error reading documents file: %v", err)}
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}
	v, err := fromNode(&root)
	if err != nil {
		return nil, err
	}
	switch docs := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return docs, nil
	case condition.Map:
		return []any{docs}, nil
	default:
		return nil, shapeError("documents file must hold a list of maps")
	}
}

// parseYAML decodes YAML or JSON through yaml.Node so key order survives.
func parseYAML(data []byte) (condition.Map, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return condition.Map{}, &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}
	if len(root.Content) == 0 {
		return condition.Map{}, nil
	}
	v, err := fromNode(root.Content[0])
	if err != nil {
		return condition.Map{}, err
	}
	m, ok := v.(condition.Map)
	if !ok {
		return condition.Map{}, shapeError("query file must hold a map at the top level")
	}
	return m, nil
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		var m condition.Map
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, nodeError(n.Content[i], "map key: %v", err)
			}
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(key, v)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, nodeError(n, "%v", err)
		}
		return v, nil
	default:
		return nil, nodeError(n, "unsupported YAML node kind %d", n.Kind)
	}
}

func nodeError(n *yaml.Node, format string, args ...any) *LoadError {
	msg := fmt.Sprintf(format, args...)
	return &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("line %d: %s", n.Line, msg)}
}

// parseCUE compiles a single CUE file and exports it in field order.
func parseCUE(path string, data []byte) (condition.Map, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return condition.Map{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE file: %v", err)}
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return condition.Map{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err), Pos: value.Pos()}
	}
	v, err := fromCUE(value)
	if err != nil {
		return condition.Map{}, err
	}
	m, ok := v.(condition.Map)
	if !ok {
		return condition.Map{}, shapeError("query file must hold a struct at the top level")
	}
	return m, nil
}

func fromCUE(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StructKind:
		var m condition.Map
		iter, err := v.Fields()
		if err != nil {
			return nil, cueError(v, err)
		}
		for iter.Next() {
			child, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			m.Set(iter.Selector().Unquoted(), child)
		}
		return m, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, cueError(v, err)
		}
		var out []any
		for iter.Next() {
			child, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, cueError(v, err)
		}
		return int(i), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, cueError(v, err)
		}
		return f, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, cueError(v, err)
		}
		return s, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, cueError(v, err)
		}
		return b, nil
	case cue.NullKind:
		return nil, nil
	default:
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("unsupported CUE value of kind %s", v.Kind()), Pos: v.Pos()}
	}
}

func cueError(v cue.Value, err error) *LoadError {
	return &LoadError{Code: ErrCodeBuildFailed, Message: err.Error(), Pos: v.Pos()}
}
