package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// NumericStep is one stage of a numeric coercion chain. It reports ok=false
// when the raw value is not its concern, passing control to the next stage.
type NumericStep func(raw interface{}, missing float64) (value float64, ok bool)

// NumericCoercer runs its steps in order and returns the first match.
// Missing is what blank, NaN and unparseable input degrade to: 0 for legacy
// vectors, NaN where the artifact imputes.
type NumericCoercer struct {
	Name    string
	Steps   []NumericStep
	Missing float64
}

func (c NumericCoercer) Coerce(raw interface{}) float64 {
	for _, step := range c.Steps {
		if v, ok := step(raw, c.Missing); ok {
			return v
		}
	}
	return c.Missing
}

var (
	frequencyTable = map[string]float64{
		"never":     1,
		"rarely":    2,
		"sometimes": 3,
		"often":     4,
	}
	typeTable = map[string]float64{
		"organic":     1,
		"non-organic": 2,
		"non_organic": 2,
		"nonorganic":  2,
		"synthetic":   2,
		"none":        0,
	}
	booleanTable = map[string]float64{
		"yes":   1,
		"true":  1,
		"1":     1,
		"no":    0,
		"false": 0,
		"0":     0,
	}
)

// LegacyNumeric is the chain used for every non-identifier key of a vector
// encoded record, and for numeric keys of the simple schema. The word tables
// run before the float parse; their order matters.
var LegacyNumeric = NumericCoercer{
	Name: "legacy",
	Steps: []NumericStep{
		BlankStep,
		BoolStep,
		NumberStep,
		TableStep(frequencyTable),
		TableStep(typeTable),
		TableStep(booleanTable),
		ParseStep,
	},
	Missing: 0,
}

// FrameNumeric leaves gaps as NaN for artifact-side imputation and does not
// interpret words.
var FrameNumeric = NumericCoercer{
	Name: "frame",
	Steps: []NumericStep{
		BlankStep,
		BoolStep,
		NumberStep,
		ParseStep,
	},
	Missing: math.NaN(),
}

// BlankStep maps nil and whitespace-only text to the missing value.
func BlankStep(raw interface{}, missing float64) (float64, bool) {
	if raw == nil {
		return missing, true
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return missing, true
	}
	return 0, false
}

func BoolStep(raw interface{}, _ float64) (float64, bool) {
	b, ok := raw.(bool)
	if !ok {
		return 0, false
	}
	if b {
		return 1, true
	}
	return 0, true
}

// NumberStep accepts native numbers and json.Number. NaN is treated as missing.
func NumberStep(raw interface{}, missing float64) (float64, bool) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint:
		v = float64(n)
	case uint32:
		v = float64(n)
	case uint64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) {
		return missing, true
	}
	return v, true
}

// TableStep looks the lower-cased, trimmed text up in table.
func TableStep(table map[string]float64) NumericStep {
	return func(raw interface{}, _ float64) (float64, bool) {
		text, ok := Stringify(raw)
		if !ok {
			return 0, false
		}
		v, found := table[strings.ToLower(strings.TrimSpace(text))]
		return v, found
	}
}

func ParseStep(raw interface{}, missing float64) (float64, bool) {
	text, ok := Stringify(raw)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) {
		return missing, true
	}
	return v, true
}

// CoerceCategorical maps raw onto the domain, or its fallback.
func CoerceCategorical(d *Domain, raw interface{}) string {
	text, ok := Stringify(raw)
	if !ok {
		return d.Fallback
	}
	token := NormalizeToken(text)
	if token == "" {
		return d.Fallback
	}
	if member, found := d.Match(token); found {
		return member
	}
	return d.Fallback
}

var presenceTruthy = map[string]struct{}{
	"yes":       {},
	"true":      {},
	"1":         {},
	"present":   {},
	"available": {},
}

// CoercePresence reads presence flags such as shade_tree_present.
func CoercePresence(raw interface{}) bool {
	if b, ok := raw.(bool); ok {
		return b
	}
	text, ok := Stringify(raw)
	if !ok {
		return false
	}
	_, truthy := presenceTruthy[strings.ToLower(strings.TrimSpace(text))]
	return truthy
}

// NormalizeToken lower-cases and trims text and collapses runs of spaces,
// underscores and hyphens into one hyphen.
func NormalizeToken(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	b.Grow(len(text))
	pendingSep := false
	for _, r := range text {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Stringify renders a scalar the way it would appear in a CSV cell. Floats
// follow the shortest round-trip form with a trailing ".0" on integral
// values and booleans are capitalised, so hashed identifiers match the ones
// produced at training time. It reports false for nil.
func Stringify(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		if v {
			return "True", true
		}
		return "False", true
	case float64:
		return formatFloat(v), true
	case float32:
		return formatFloat(float64(v)), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) {
		s += ".0"
	}
	return s
}
