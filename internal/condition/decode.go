package condition

import (
	"fmt"
	"strings"
)

// FieldRefKey marks a field reference in decoded documents: {"$field": "path"}.
const FieldRefKey = "$field"

// Decode builds a Condition from a generic ordered tree, as produced by the
// CLI loaders. Recognized keys:
//
//	filter, sort, offset, limit, fields, join,
//	returnAllSubArray, negative, crossPartition
//
// Sort accepts a list of field names ("-age" or "age desc" for descending)
// or a map of field to "asc"/"desc"/1/-1. Unknown keys are rejected.
func Decode(m Map) (*Condition, error) {
	c := New()
	for key, value := range m.All() {
		var err error
		switch key {
		case "filter":
			var f Map
			f, err = decodeFilter(value)
			c.Filter = f
		case "sort":
			c.Sort, err = decodeSort(value)
		case "offset":
			c.Offset, err = decodeInt(key, value)
		case "limit":
			c.Limit, err = decodeInt(key, value)
		case "fields":
			c.Fields, err = decodeStrings(key, value)
		case "join":
			c.Join, err = decodeStrings(key, value)
		case "returnAllSubArray":
			c.ReturnAllSubArray, err = decodeBool(key, value)
		case "negative":
			c.Negative, err = decodeBool(key, value)
		case "crossPartition":
			c.CrossPartition, err = decodeBool(key, value)
		default:
			err = fmt.Errorf("unknown condition key %q", key)
		}
		if err != nil {
			return nil, newValidationError(ErrCodeInvalidArguments, key, "%s", err.Error())
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeFilter(value any) (Map, error) {
	if value == nil {
		return Map{}, nil
	}
	m, ok := value.(Map)
	if !ok {
		return Map{}, fmt.Errorf("filter must be a map, got %T", value)
	}
	var out Map
	for k, v := range m.All() {
		out.Set(k, decodeValue(v))
	}
	return out, nil
}

// decodeValue converts {"$field": "x"} maps into FieldRef, recursively.
func decodeValue(v any) any {
	switch val := v.(type) {
	case Map:
		if val.Len() == 1 {
			if ref, ok := val.Get(FieldRefKey); ok {
				if s, ok := ref.(string); ok {
					return FieldRef(s)
				}
			}
		}
		var out Map
		for k, inner := range val.All() {
			out.Set(k, decodeValue(inner))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = decodeValue(inner)
		}
		return out
	default:
		return v
	}
}

func decodeSort(value any) ([]SortField, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []SortField{parseSortSpec(v)}, nil
	case []any:
		out := make([]SortField, 0, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("sort[%d] must be a string, got %T", i, elem)
			}
			out = append(out, parseSortSpec(s))
		}
		return out, nil
	case Map:
		out := make([]SortField, 0, v.Len())
		for field, dir := range v.All() {
			desc, err := parseDirection(dir)
			if err != nil {
				return nil, fmt.Errorf("sort %q: %w", field, err)
			}
			out = append(out, SortField{Field: field, Desc: desc})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("sort must be a list or map, got %T", value)
	}
}

func parseSortSpec(s string) SortField {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return SortField{Field: s[1:], Desc: true}
	}
	fields := strings.Fields(s)
	if len(fields) == 2 {
		return SortField{Field: fields[0], Desc: strings.EqualFold(fields[1], "desc")}
	}
	return SortField{Field: s}
}

func parseDirection(v any) (bool, error) {
	switch d := v.(type) {
	case string:
		switch strings.ToLower(d) {
		case "asc":
			return false, nil
		case "desc":
			return true, nil
		}
	case int:
		switch d {
		case 1:
			return false, nil
		case -1:
			return true, nil
		}
	case bool:
		return d, nil
	}
	return false, fmt.Errorf("invalid direction %v", v)
}

func decodeInt(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, value)
	}
}

func decodeBool(key string, value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean, got %T", key, value)
	}
	return b, nil
}

func decodeStrings(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string, got %T", key, i, elem)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a list of strings, got %T", key, value)
	}
}
