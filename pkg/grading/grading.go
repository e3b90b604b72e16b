// Package grading turns raw grade predictions into a consistent
// fine/premium/commercial distribution and a human-readable label.
package grading

import "math"

const (
	Fine       = "Fine"
	Premium    = "Premium"
	Commercial = "Commercial"
)

// Triplet is a fine/premium/commercial percentage split.
type Triplet struct {
	Fine       float64
	Premium    float64
	Commercial float64
}

func (t Triplet) Sum() float64 { return t.Fine + t.Premium + t.Commercial }

// NormalizeTriplet clips negative values to zero and rescales the rest so
// they sum to 100. A triplet with no positive mass becomes all zeros.
func NormalizeTriplet(fine, premium, commercial float64) Triplet {
	fine, premium, commercial = clip(fine), clip(premium), clip(commercial)
	total := fine + premium + commercial
	if !(total > 0) {
		return Triplet{}
	}
	return Triplet{
		Fine:       fine / total * 100,
		Premium:    premium / total * 100,
		Commercial: commercial / total * 100,
	}
}

func clip(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// Label is the dominant grade plus a coarse mix description.
type Label struct {
	Dominant string
	Label    string
}

// DeriveLabel picks the dominant grade, with ties going to the earlier of
// Fine, Premium, Commercial, and classifies the mix.
func DeriveLabel(fine, premium, commercial float64) Label {
	dominant, value := Fine, fine
	if premium > value {
		dominant, value = Premium, premium
	}
	if commercial > value {
		dominant, value = Commercial, commercial
	}

	var label string
	switch {
	case value >= 55:
		label = dominant + " Dominant"
	case fine+premium >= 70:
		label = "High-Quality Mix"
	case commercial >= 45:
		label = "Commercial Mix"
	default:
		label = "Balanced Mix"
	}
	return Label{Dominant: dominant, Label: label}
}

// Round3 rounds half away from zero to three decimals.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ClipYield floors a yield prediction at zero.
func ClipYield(v float64) float64 {
	return clip(v)
}
