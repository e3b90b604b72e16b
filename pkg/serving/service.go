package serving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/common/models"
	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/grading"
	"github.com/ikape/platform/pkg/observability/metrics"
	"github.com/ikape/platform/pkg/serving/predictor"
	"golang.org/x/sync/errgroup"
)

// PredictionError wraps a model evaluation failure.
type PredictionError struct {
	Cause error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("Prediction failed: %v", e.Cause)
}

func (e *PredictionError) Unwrap() error {
	return e.Cause
}

func IsPredictionError(err error) bool {
	var pe *PredictionError
	return errors.As(err, &pe)
}

// Cache stores results by record fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (models.PredictionResult, bool, error)
	Set(ctx context.Context, key string, result models.PredictionResult) error
}

// Entry is what a Sink receives for every successful prediction.
type Entry struct {
	ID         uuid.UUID
	Generation string
	SampleID   interface{}
	Features   map[string]interface{}
	Result     models.PredictionResult
	Cached     bool
	Latency    time.Duration
	CreatedAt  time.Time
}

// Sink observes completed predictions. Sink errors never fail a prediction.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithSinks(sinks ...Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithMaxConcurrency bounds how many batch samples are scored at once.
func WithMaxConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// Service scores samples against one model generation.
type Service struct {
	gen            *predictor.Generation
	assembler      *features.Assembler
	cache          Cache
	sinks          []Sink
	maxConcurrency int
}

func NewService(gen *predictor.Generation, opts ...Option) *Service {
	s := &Service{
		gen:            gen,
		assembler:      features.NewAssembler(gen.Schema, gen.Encoding),
		maxConcurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Generation() *predictor.Generation { return s.gen }

// PredictOne scores one raw feature payload. Malformed input returns a
// features.ValidationError, model failures a *PredictionError.
func (s *Service) PredictOne(ctx context.Context, raw interface{}) (models.PredictionResult, error) {
	return s.predict(ctx, nil, raw)
}

// PredictBatch scores every sample independently. The result has one item
// per sample in input order; a failing sample yields an item with Error set.
func (s *Service) PredictBatch(ctx context.Context, samples []models.BatchSample) []models.BatchItem {
	items := make([]models.BatchItem, len(samples))
	if len(samples) == 0 {
		return items
	}
	metrics.ObserveBatch()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i := range samples {
		i := i
		g.Go(func() error {
			sample := samples[i]
			items[i].ID = sample.ID
			result, err := s.predict(gctx, sample.ID, sample.Features)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Prediction = &result
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (s *Service) predict(ctx context.Context, sampleID interface{}, raw interface{}) (models.PredictionResult, error) {
	start := time.Now()

	rec, err := s.assembler.Assemble(raw)
	if err != nil {
		metrics.ObserveRejection()
		return models.PredictionResult{}, err
	}

	var key string
	if s.cache != nil {
		key = s.gen.Name + ":" + rec.Fingerprint()
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Log.WithError(err).WithField("generation", s.gen.Name).Warn("Prediction cache lookup failed")
		}
		metrics.ObserveCache(ok)
		if ok {
			s.emit(ctx, sampleID, rec, cached, true, time.Since(start))
			return cached, nil
		}
	}

	result, err := s.score(ctx, rec)
	if err != nil {
		metrics.ObserveFailure()
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"generation": s.gen.Name,
			"sample_id":  sampleID,
		}).Error("Prediction failed")
		return models.PredictionResult{}, &PredictionError{Cause: err}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			logger.Log.WithError(err).WithField("generation", s.gen.Name).Warn("Prediction cache store failed")
		}
	}

	latency := time.Since(start)
	metrics.ObservePrediction(s.gen.Name, latency)
	s.emit(ctx, sampleID, rec, result, false, latency)
	return result, nil
}

func (s *Service) score(ctx context.Context, rec *features.Record) (models.PredictionResult, error) {
	var raw [4]float64
	for i, target := range predictor.Targets {
		m := s.gen.Models.ByTarget(target)
		if m == nil {
			return models.PredictionResult{}, fmt.Errorf("no model for %s", target)
		}
		y, err := m.Predict(ctx, rec)
		if err != nil {
			return models.PredictionResult{}, err
		}
		raw[i] = y
	}

	mix := grading.NormalizeTriplet(raw[1], raw[2], raw[3])
	label := grading.DeriveLabel(mix.Fine, mix.Premium, mix.Commercial)
	return models.PredictionResult{
		YieldKg:            grading.Round3(grading.ClipYield(raw[0])),
		FineGradePct:       grading.Round3(mix.Fine),
		PremiumGradePct:    grading.Round3(mix.Premium),
		CommercialGradePct: grading.Round3(mix.Commercial),
		DominantGrade:      label.Dominant,
		GradeLabel:         label.Label,
	}, nil
}

func (s *Service) emit(ctx context.Context, sampleID interface{}, rec *features.Record, result models.PredictionResult, cached bool, latency time.Duration) {
	if len(s.sinks) == 0 {
		return
	}
	entry := Entry{
		ID:         uuid.New(),
		Generation: s.gen.Name,
		SampleID:   sampleID,
		Features:   rec.Map(),
		Result:     result,
		Cached:     cached,
		Latency:    latency,
		CreatedAt:  time.Now().UTC(),
	}
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			metrics.ObserveSinkError()
			logger.Log.WithError(err).WithField("generation", s.gen.Name).Warn("Prediction sink failed")
		}
	}
}
