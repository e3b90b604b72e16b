package features

import "sort"

// Assembler turns raw request features into a Record for one schema and
// encoding. It holds no mutable state and is safe for concurrent use.
type Assembler struct {
	schema   *Schema
	encoding Encoding
}

func NewAssembler(schema *Schema, encoding Encoding) *Assembler {
	return &Assembler{schema: schema, encoding: encoding}
}

func (a *Assembler) Schema() *Schema    { return a.schema }
func (a *Assembler) Encoding() Encoding { return a.encoding }

// Assemble accepts either an ordered list with one value per canonical key or
// a mapping of names to values. Lists are zipped positionally. Mappings are
// read by canonical key, falling back to aliases when the schema resolves
// them; absent keys count as missing.
func (a *Assembler) Assemble(raw interface{}) (*Record, error) {
	var lookup func(f Field) interface{}

	switch in := raw.(type) {
	case []interface{}:
		if len(in) != a.schema.Len() {
			return nil, lengthError(a.schema.Len(), len(in))
		}
		lookup = func(f Field) interface{} { return in[a.schema.index[f.Key]] }
	case map[string]interface{}:
		if a.schema.ResolveAliases {
			lookup = aliasLookup(in)
		} else {
			lookup = func(f Field) interface{} { return in[f.Key] }
		}
	default:
		return nil, ValidationError{reason: ErrInvalidShape}
	}

	rec := &Record{
		Schema:   a.schema,
		Encoding: a.encoding,
		Values:   make([]Value, a.schema.Len()),
	}
	for i, f := range a.schema.Fields {
		rec.Values[i] = a.coerce(f, lookup(f))
	}
	return rec, nil
}

func (a *Assembler) coerce(f Field, raw interface{}) Value {
	if f.Kind == KindIdentifier {
		return Number(HashIdentifier(raw))
	}
	if a.encoding == EncodingVector {
		return Number(LegacyNumeric.Coerce(raw))
	}
	switch f.Kind {
	case KindCategorical:
		return Text(CoerceCategorical(f.Domain, raw))
	case KindBoolean:
		return Flag(CoercePresence(raw))
	default:
		return Number(a.schema.Numeric.Coerce(raw))
	}
}

// aliasLookup resolves a field from a mapping: the canonical key first, then
// each alias as given, then each alias against normalized input names.
func aliasLookup(in map[string]interface{}) func(Field) interface{} {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	// Sorted so that two input names normalizing alike resolve the same way
	// on every call.
	sort.Strings(names)
	normalized := make(map[string]string, len(names))
	for _, name := range names {
		n := NormalizeColumnName(name)
		if _, taken := normalized[n]; !taken {
			normalized[n] = name
		}
	}

	return func(f Field) interface{} {
		if v, ok := in[f.Key]; ok {
			return v
		}
		for _, alias := range f.Aliases {
			if v, ok := in[alias]; ok {
				return v
			}
		}
		for _, alias := range f.Aliases {
			if name, ok := normalized[alias]; ok {
				return in[name]
			}
		}
		return nil
	}
}
