package querysql

import (
	"strings"

	"github.com/roach88/docquery/internal/queryir"
)

// scope is the rendering position inside the document.
type scope struct {
	root    string // jsonb expression of the current element: data, j1, agg.data
	docRoot string // jsonb expression of the whole document, for field references
	path    string // absolute path of the current join, "" at top level
	depth   int    // join nesting depth; aliases are j<depth>
	negated bool
}

func (s scope) absolute(field string) string {
	switch {
	case s.path == "":
		return field
	case field == "":
		return s.path
	default:
		return s.path + "." + field
	}
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// quoteKey renders a JSON object key as a string literal.
func quoteKey(key string) string {
	return "'" + strings.ReplaceAll(key, "'", "''") + "'"
}

// quoteIdent renders a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// jsonAccessor navigates to path keeping jsonb: data->'a'->'b'.
func jsonAccessor(root, path string) string {
	var b strings.Builder
	b.WriteString(root)
	for _, seg := range splitPath(path) {
		b.WriteString("->")
		b.WriteString(quoteKey(seg))
	}
	return b.String()
}

// textAccessor navigates to path and extracts text: data->'a'->>'b'.
// The element itself is extracted with #>> '{}'.
func textAccessor(root, path string) string {
	segs := splitPath(path)
	if len(segs) == 0 {
		return "(" + root + " #>> '{}')"
	}
	var b strings.Builder
	b.WriteString(root)
	for i, seg := range segs {
		if i == len(segs)-1 {
			b.WriteString("->>")
		} else {
			b.WriteString("->")
		}
		b.WriteString(quoteKey(seg))
	}
	return b.String()
}

// typedAccessor picks the accessor matching the compared value: numeric and
// boolean values cast the extracted text, strings compare as text, and
// everything else stays jsonb.
func typedAccessor(root, path string, kind queryir.Kind) string {
	switch kind {
	case queryir.KindNumber:
		return "(" + textAccessor(root, path) + ")::numeric"
	case queryir.KindBool:
		return "(" + textAccessor(root, path) + ")::boolean"
	case queryir.KindString:
		return textAccessor(root, path)
	default:
		return jsonAccessor(root, path)
	}
}

// jsonbArrayPath renders a path as a text[] literal for jsonb_set.
func jsonbArrayPath(path string) string {
	segs := splitPath(path)
	quoted := make([]string, len(segs))
	for i, s := range segs {
		quoted[i] = quoteKey(s)
	}
	return "ARRAY[" + strings.Join(quoted, ", ") + "]"
}
