package features

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

type valueType uint8

const (
	valueNumber valueType = iota
	valueText
	valueFlag
)

// Value is one coerced feature value. Numbers use NaN for missing, text uses
// the empty string for unknown.
type Value struct {
	typ  valueType
	num  float64
	text string
	flag bool
}

func Number(v float64) Value { return Value{typ: valueNumber, num: v} }
func Text(v string) Value    { return Value{typ: valueText, text: v} }
func Flag(v bool) Value      { return Value{typ: valueFlag, flag: v} }

func (v Value) IsNumber() bool { return v.typ == valueNumber }
func (v Value) IsText() bool   { return v.typ == valueText }
func (v Value) IsFlag() bool   { return v.typ == valueFlag }

func (v Value) Missing() bool {
	switch v.typ {
	case valueNumber:
		return math.IsNaN(v.num)
	case valueText:
		return v.text == ""
	default:
		return false
	}
}

// Float returns the numeric reading of the value. Flags read as 1/0 and text
// reads as NaN.
func (v Value) Float() float64 {
	switch v.typ {
	case valueNumber:
		return v.num
	case valueFlag:
		if v.flag {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

func (v Value) String() string {
	switch v.typ {
	case valueText:
		return v.text
	case valueFlag:
		return strconv.FormatBool(v.flag)
	default:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
}

// Interface returns a JSON-safe representation: NaN and unknown become nil.
func (v Value) Interface() interface{} {
	if v.Missing() {
		return nil
	}
	switch v.typ {
	case valueText:
		return v.text
	case valueFlag:
		return v.flag
	default:
		if math.IsInf(v.num, 0) {
			return nil
		}
		return v.num
	}
}

// Record is a fully assembled input: one value per canonical key of Schema,
// in canonical order.
type Record struct {
	Schema   *Schema
	Encoding Encoding
	Values   []Value
}

func (r *Record) Len() int { return len(r.Values) }

func (r *Record) Get(key string) (Value, bool) {
	i, ok := r.Schema.index[key]
	if !ok || i >= len(r.Values) {
		return Value{}, false
	}
	return r.Values[i], true
}

// Vector returns the numeric reading of every value in canonical order.
func (r *Record) Vector() []float64 {
	out := make([]float64, len(r.Values))
	for i, v := range r.Values {
		out[i] = v.Float()
	}
	return out
}

func (r *Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Values))
	for i, v := range r.Values {
		out[r.Schema.Fields[i].Key] = v.Interface()
	}
	return out
}

// Fingerprint identifies the record content. Two inputs that canonicalize to
// the same record share a fingerprint.
func (r *Record) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.Schema.Name)
	b.WriteByte('|')
	b.WriteString(string(r.Encoding))
	for i, v := range r.Values {
		b.WriteByte('|')
		b.WriteString(r.Schema.Fields[i].Key)
		b.WriteByte('=')
		b.WriteString(v.String())
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
