package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ikape/platform/pkg/common/httpclient"
	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/features"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// RemoteConfig describes a model hosted behind an HTTP scoring endpoint that
// accepts {"model": name, "features_list": [...]} and answers {"scores": [...]}.
type RemoteConfig struct {
	Name       string
	Endpoint   string
	ModelName  string
	InputWidth int
	Encoding   features.Encoding
	Timeout    time.Duration
	Retries    int

	// Client credentials; token fetching is skipped when TokenURL is empty.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Breaker settings.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type RemoteModel struct {
	cfg     RemoteConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]float64]
}

func NewRemoteModel(cfg RemoteConfig) (*RemoteModel, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s: remote model without endpoint", cfg.Name)
	}
	if cfg.InputWidth <= 0 {
		return nil, fmt.Errorf("%s: remote model must declare input_width", cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.ModelName == "" {
		cfg.ModelName = cfg.Name
	}

	client := httpclient.New(cfg.Timeout)
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || rejectedByServer(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.WithFields(map[string]interface{}{
				"model": name,
				"from":  from.String(),
				"to":    to.String(),
			}).Warn("Remote model breaker changed state")
		},
	}

	return &RemoteModel{
		cfg:     cfg,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]float64](settings),
	}, nil
}

func (m *RemoteModel) Name() string                { return m.cfg.Name }
func (m *RemoteModel) InputWidth() int             { return m.cfg.InputWidth }
func (m *RemoteModel) Encoding() features.Encoding { return m.cfg.Encoding }

// BreakerState reports the circuit state for health output.
func (m *RemoteModel) BreakerState() string { return m.breaker.State().String() }

func (m *RemoteModel) Predict(ctx context.Context, rec *features.Record) (float64, error) {
	scores, err := m.PredictBatch(ctx, []*features.Record{rec})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// PredictBatch scores several records in one round trip.
func (m *RemoteModel) PredictBatch(ctx context.Context, recs []*features.Record) ([]float64, error) {
	if len(recs) == 0 {
		return []float64{}, nil
	}
	list := make([]map[string]interface{}, len(recs))
	for i, rec := range recs {
		if rec.Len() != m.cfg.InputWidth {
			return nil, fmt.Errorf("%s: record has %d features, model expects %d", m.cfg.Name, rec.Len(), m.cfg.InputWidth)
		}
		list[i] = rec.Map()
	}
	body, err := json.Marshal(map[string]interface{}{
		"model":         m.cfg.ModelName,
		"features_list": list,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var scores []float64
	err = httpclient.Retry(ctx, m.cfg.Retries, 100*time.Millisecond, func() error {
		s, err := m.breaker.Execute(func() ([]float64, error) {
			return m.call(ctx, body)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || !retriable(err) {
				return httpclient.Permanent(err)
			}
			return err
		}
		scores = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.cfg.Name, err)
	}
	if len(scores) != len(recs) {
		return nil, fmt.Errorf("%s: response scores count mismatch: expected %d, got %d", m.cfg.Name, len(recs), len(scores))
	}
	return scores, nil
}

type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	return fmt.Sprintf("model server error: status=%d, body=%s", e.code, e.body)
}

func retriable(err error) bool {
	var se statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return httpclient.IsRetriable(err)
}

// rejectedByServer reports a 4xx other than 429: the server is healthy and
// refused this request, so it must not trip the breaker.
func rejectedByServer(err error) bool {
	var se statusError
	if errors.As(err, &se) {
		return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
	}
	return false
}

func (m *RemoteModel) call(ctx context.Context, body []byte) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		content, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError{code: resp.StatusCode, body: string(content)}
	}

	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Scores, nil
}
