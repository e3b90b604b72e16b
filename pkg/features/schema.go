package features

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind is the semantic type of a canonical key.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
	KindBoolean
	KindIdentifier
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindBoolean:
		return "boolean"
	case KindIdentifier:
		return "identifier"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Encoding is the input representation a model artifact was fitted on.
//
// Frame artifacts receive typed records: categorical keys stay canonical
// strings and missing numerics are NaN so the artifact can impute them.
// Vector artifacts predate that pipeline and expect every key as a number,
// with missing values already replaced by zero.
type Encoding string

const (
	EncodingFrame  Encoding = "frame"
	EncodingVector Encoding = "vector"
)

func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case EncodingFrame, "":
		return EncodingFrame, nil
	case EncodingVector, "legacy":
		return EncodingVector, nil
	default:
		return "", fmt.Errorf("unknown feature encoding %q", s)
	}
}

// Field describes one canonical key. Aliases lists the accepted source
// column names in resolution order, starting with the key itself.
type Field struct {
	Key     string
	Kind    Kind
	Aliases []string
	Domain  *Domain
}

// Schema is one versioned set of canonical keys. Different model
// generations are fitted against different schemas, so nothing in this
// package assumes a single global key list.
type Schema struct {
	Name    string
	Fields  []Field
	Targets []Field
	// Numeric is the coercion chain used for numeric keys in frame encoding.
	Numeric NumericCoercer
	// ResolveAliases enables alias and column-name resolution for mapping input.
	ResolveAliases bool

	index map[string]int
}

func newSchema(name string, numeric NumericCoercer, resolveAliases bool, fields, targets []Field) *Schema {
	s := &Schema{
		Name:           name,
		Fields:         fields,
		Targets:        targets,
		Numeric:        numeric,
		ResolveAliases: resolveAliases,
		index:          make(map[string]int, len(fields)),
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		if _, dup := s.index[f.Key]; dup {
			panic(fmt.Sprintf("features: duplicate key %s in schema %s", f.Key, name))
		}
		if len(f.Aliases) == 0 {
			f.Aliases = []string{f.Key}
		}
		if f.Kind == KindCategorical && f.Domain == nil {
			panic(fmt.Sprintf("features: categorical key %s in schema %s has no domain", f.Key, name))
		}
		s.index[f.Key] = i
	}
	for i := range s.Targets {
		if len(s.Targets[i].Aliases) == 0 {
			s.Targets[i].Aliases = []string{s.Targets[i].Key}
		}
	}
	return s
}

// Len is the number of canonical feature keys, i.e. the model input width.
func (s *Schema) Len() int { return len(s.Fields) }

func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

func (s *Schema) KeysOfKind(kinds ...Kind) []string {
	var keys []string
	for _, f := range s.Fields {
		for _, k := range kinds {
			if f.Kind == k {
				keys = append(keys, f.Key)
				break
			}
		}
	}
	return keys
}

func (s *Schema) TargetKeys() []string {
	keys := make([]string, len(s.Targets))
	for i, f := range s.Targets {
		keys[i] = f.Key
	}
	return keys
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Schema{}
)

// Register makes a schema available to Lookup. Registering a name twice
// replaces the earlier schema.
func Register(s *Schema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name] = s
}

func Lookup(name string) (*Schema, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown feature schema %q (known: %s)", name, strings.Join(namesLocked(), ", "))
	}
	return s, nil
}

func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
