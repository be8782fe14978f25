package querysql

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Param is one named binding of a compiled query.
type Param struct {
	// Name is the placeholder without its leading @.
	Name  string
	Value any
}

// Placeholder returns the name as written in query text.
func (p Param) Placeholder() string {
	return "@" + p.Name
}

// paramName derives a parameter name from a global index and the absolute
// dotted path it binds: param003_children__grade.
func paramName(index int, path string) string {
	base := fmt.Sprintf("param%03d", index)
	if s := sanitizePath(path); s != "" {
		return base + "_" + s
	}
	return base
}

// sanitizePath folds accents and keeps only [A-Za-z0-9_], mapping dots to
// double underscores.
func sanitizePath(path string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), path)
	if err != nil {
		folded = path
	}
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == '.':
			b.WriteString("__")
		case r == '_', r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}
