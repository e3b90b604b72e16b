package dataset

import (
	"math"

	"github.com/ikape/platform/pkg/features"
)

// QualityReport summarizes what Prepare did to the raw export.
type QualityReport struct {
	InitialRows           int                    `json:"initial_rows"`
	RowsAfterDedup        int                    `json:"rows_after_dedup"`
	RowsAfterCleaning     int                    `json:"rows_after_cleaning"`
	DroppedDuplicates     int                    `json:"dropped_duplicates"`
	MissingRateBeforeFill map[string]float64     `json:"missing_rate_before_default_fill"`
	MissingRate           map[string]float64     `json:"missing_rate_by_column"`
	CategoricalDropped    map[string]int         `json:"categorical_values_dropped_to_unknown"`
	NumericFilled         []string               `json:"all_null_numeric_filled_with_zero"`
	CategoricalFilled     map[string]string      `json:"all_null_categorical_filled"`
	FeatureQuality        map[string]ColumnStats `json:"feature_quality"`
}

// ColumnStats are nil when the column has no values to summarize.
type ColumnStats struct {
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
}

func missingRates(p *Prepared) map[string]float64 {
	rates := make(map[string]float64, p.Schema.Len()+len(p.Schema.Targets))
	n := float64(p.Len())
	for i, f := range p.Schema.Fields {
		var missing int
		for _, rec := range p.Records {
			if rec.Values[i].Missing() {
				missing++
			}
		}
		rates[f.Key] = rate(missing, n)
	}
	for i, f := range p.Schema.Targets {
		var missing int
		for _, row := range p.Targets {
			if math.IsNaN(row[i]) {
				missing++
			}
		}
		rates[f.Key] = rate(missing, n)
	}
	return rates
}

func rate(missing int, n float64) float64 {
	if n == 0 {
		return 0
	}
	return round4(float64(missing) / n)
}

func featureQuality(p *Prepared) map[string]ColumnStats {
	out := make(map[string]ColumnStats)
	for i, f := range p.Schema.Fields {
		if f.Kind != features.KindNumeric {
			continue
		}
		var values []float64
		for _, rec := range p.Records {
			if v := rec.Values[i].Float(); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		out[f.Key] = columnStats(values)
	}
	return out
}

// columnStats uses the sample standard deviation.
func columnStats(values []float64) ColumnStats {
	if len(values) == 0 {
		return ColumnStats{}
	}
	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))
	stats := ColumnStats{Mean: ptr(round4(mean)), Min: ptr(round4(lo)), Max: ptr(round4(hi))}
	if len(values) > 1 {
		var ss float64
		for _, v := range values {
			ss += (v - mean) * (v - mean)
		}
		stats.Std = ptr(round4(math.Sqrt(ss / float64(len(values)-1))))
	}
	return stats
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func ptr(v float64) *float64 { return &v }
