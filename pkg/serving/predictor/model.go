package predictor

import (
	"context"

	"github.com/ikape/platform/pkg/features"
)

// Model is one trained regressor for one target. Implementations are loaded
// once and shared read-only between requests.
type Model interface {
	Name() string
	// InputWidth is the number of canonical keys the model was fitted on.
	InputWidth() int
	Encoding() features.Encoding
	Predict(ctx context.Context, rec *features.Record) (float64, error)
}

// Targets lists the four models a generation needs, in response order.
var Targets = []string{"yield_kg", "fine_grade_pct", "premium_grade_pct", "commercial_grade_pct"}

// Set holds one model per target.
type Set struct {
	Yield      Model
	Fine       Model
	Premium    Model
	Commercial Model
}

func (s Set) ByTarget(target string) Model {
	switch target {
	case "yield_kg":
		return s.Yield
	case "fine_grade_pct":
		return s.Fine
	case "premium_grade_pct":
		return s.Premium
	case "commercial_grade_pct":
		return s.Commercial
	}
	return nil
}

func (s *Set) assign(target string, m Model) {
	switch target {
	case "yield_kg":
		s.Yield = m
	case "fine_grade_pct":
		s.Fine = m
	case "premium_grade_pct":
		s.Premium = m
	case "commercial_grade_pct":
		s.Commercial = m
	}
}
