package features

import (
	"fmt"
	"strings"
)

// NormalizeColumnName lower-cases name, replaces every run of characters
// outside [a-z0-9] with a single underscore and trims underscores at both ends.
func NormalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	pending := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteByte(c)
			continue
		}
		pending = true
	}
	return b.String()
}

// NormalizeColumnNames maps each original name to its normalized form.
func NormalizeColumnNames(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = NormalizeColumnName(n)
	}
	return out
}

// MissingColumnsError lists canonical keys that no available column could
// satisfy.
type MissingColumnsError struct {
	Kind    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required %s columns after alias resolution: %s", e.Kind, strings.Join(e.Missing, ", "))
}

// ResolveColumns picks, for every field, the first alias present in columns.
// Fields are visited in order, so the result is deterministic. With strict
// set, any unresolved field fails the call with a *MissingColumnsError.
func ResolveColumns(columns []string, fields []Field, kind string, strict bool) (map[string]string, error) {
	available := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		available[c] = struct{}{}
	}

	resolved := make(map[string]string, len(fields))
	var missing []string
	for _, f := range fields {
		found := false
		for _, alias := range f.Aliases {
			if _, ok := available[alias]; ok {
				resolved[f.Key] = alias
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, f.Key)
		}
	}
	if strict && len(missing) > 0 {
		return resolved, &MissingColumnsError{Kind: kind, Missing: missing}
	}
	return resolved, nil
}
