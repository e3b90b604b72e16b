package features

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// HashIdentifier turns a farm or cluster identifier into the numeric feature
// the artifacts were trained on: the first 12 hex digits of the SHA-1 of the
// trimmed text, read as an integer. Nil and blank identifiers hash to 0.
// Changing this invalidates every trained artifact.
func HashIdentifier(raw interface{}) float64 {
	text, ok := Stringify(raw)
	if !ok {
		return 0
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	sum := sha1.Sum([]byte(text))
	digest := hex.EncodeToString(sum[:])
	v, err := strconv.ParseUint(digest[:12], 16, 64)
	if err != nil {
		return 0
	}
	return float64(v)
}
