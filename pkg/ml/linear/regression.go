package linear

import "math"

type Options struct {
	Epochs       int
	LearningRate float64
	// L2 is the ridge penalty applied to coefficients, not the bias.
	L2 float64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// TrainRegression fits a least-squares linear model with batch gradient
// descent. Inputs are expected to be standardized.
func TrainRegression(samples [][]float64, labels []float64, opts Options) (Weights, Metrics) {
	if opts.Epochs <= 0 {
		opts.Epochs = 500
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.05
	}

	n := len(samples)
	if n == 0 {
		return Weights{}, Metrics{}
	}
	featureCount := len(samples[0])
	weights := make([]float64, featureCount)
	bias := mean(labels)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for i, sample := range samples {
			residual := dot(weights, sample) + bias - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += residual * sample[j]
			}
			biasGrad += residual
		}
		for j := 0; j < featureCount; j++ {
			weights[j] -= opts.LearningRate * (grad[j]/float64(n) + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	w := Weights{Bias: bias, Coefficients: weights}
	return w, Evaluate(w, samples, labels)
}

func Predict(weights Weights, sample []float64) float64 {
	return dot(weights.Coefficients, sample) + weights.Bias
}

func Evaluate(weights Weights, samples [][]float64, labels []float64) Metrics {
	if len(samples) == 0 {
		return Metrics{}
	}
	avg := mean(labels)
	var sse, sae, sst float64
	for i, sample := range samples {
		diff := Predict(weights, sample) - labels[i]
		sse += diff * diff
		sae += math.Abs(diff)
		sst += (labels[i] - avg) * (labels[i] - avg)
	}
	n := float64(len(samples))
	m := Metrics{RMSE: math.Sqrt(sse / n), MAE: sae / n}
	if sst > 0 {
		m.R2 = 1 - sse/sst
	}
	return m
}

// FitStandardizer returns per-column mean and standard deviation. Constant
// columns get a scale of 1.
func FitStandardizer(samples [][]float64) (means, scales []float64) {
	if len(samples) == 0 {
		return nil, nil
	}
	width := len(samples[0])
	means = make([]float64, width)
	scales = make([]float64, width)
	n := float64(len(samples))
	for _, s := range samples {
		for j, v := range s {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, s := range samples {
		for j, v := range s {
			d := v - means[j]
			scales[j] += d * d
		}
	}
	for j := range scales {
		scales[j] = math.Sqrt(scales[j] / n)
		if scales[j] == 0 {
			scales[j] = 1
		}
	}
	return means, scales
}

func Standardize(sample, means, scales []float64) []float64 {
	out := make([]float64, len(sample))
	for j, v := range sample {
		out[j] = (v - means[j]) / scales[j]
	}
	return out
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
