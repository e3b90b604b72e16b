package predictor

import (
	"fmt"

	"github.com/ikape/platform/pkg/ml/linear"
)

type linearEstimator struct {
	weights linear.Weights
}

func (e linearEstimator) evaluate(x []float64) float64 {
	return linear.Predict(e.weights, x)
}

func (e linearEstimator) validate(width int) error {
	if len(e.weights.Coefficients) != width {
		return fmt.Errorf("linear artifact has %d coefficients, design width is %d", len(e.weights.Coefficients), width)
	}
	return nil
}
