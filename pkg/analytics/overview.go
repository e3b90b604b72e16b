// Package analytics summarizes the synthetic administration dataset shipped
// with demo deployments.
package analytics

import (
	"encoding/json"
	"math"
	"os"
	"strings"

	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/common/models"
	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/grading"
)

const (
	SourceSynthetic = "synthetic"
	SourceFallback  = "fallback"
	SourceNone      = "none"
)

type Service struct {
	dataMode string
	path     string
}

func NewService(dataMode, path string) *Service {
	return &Service{dataMode: strings.ToLower(strings.TrimSpace(dataMode)), path: path}
}

// Overview aggregates the admin dataset when running in synthetic mode and
// returns a zeroed payload otherwise, so dashboards always get the same shape.
func (s *Service) Overview() models.AnalyticsOverview {
	if s.dataMode == SourceSynthetic {
		if payload, ok := s.load(); ok {
			return Summarize(payload)
		}
	}
	return models.AnalyticsOverview{Source: SourceFallback}
}

func (s *Service) AdminData() models.AdminDataResponse {
	payload, ok := s.load()
	if !ok {
		return models.AdminDataResponse{
			Available: false,
			Source:    SourceNone,
			Message:   "Synthetic admin dataset not found.",
		}
	}
	return models.AdminDataResponse{Available: true, Source: SourceSynthetic, Data: payload}
}

func (s *Service) load() (map[string]interface{}, bool) {
	if s.path == "" {
		return nil, false
	}
	content, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log.WithError(err).WithField("path", s.path).Warn("failed to read admin dataset")
		}
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(string(content)))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil || len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

// Summarize counts users and clusters and totals yield and grade weights
// over harvest records.
func Summarize(payload map[string]interface{}) models.AnalyticsOverview {
	users, _ := payload["users"].([]interface{})
	clusters, _ := payload["clusters"].([]interface{})
	harvests, _ := payload["harvest_records"].([]interface{})

	var yield, fine, premium, commercial float64
	for _, h := range harvests {
		rec, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		yield += number(rec["yield_kg"])
		fine += number(rec["grade_fine"])
		premium += number(rec["grade_premium"])
		commercial += number(rec["grade_commercial"])
	}

	return models.AnalyticsOverview{
		TotalFarmers:  len(users),
		TotalClusters: len(clusters),
		TotalYieldKg:  grading.Round3(yield),
		Charts: models.AnalyticsCharts{GradeMix: models.GradeMix{
			Fine:       grading.Round3(fine),
			Premium:    grading.Round3(premium),
			Commercial: grading.Round3(commercial),
		}},
		Source: SourceSynthetic,
	}
}

func number(raw interface{}) float64 {
	v := features.FrameNumeric.Coerce(raw)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
