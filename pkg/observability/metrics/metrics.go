package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	predictionsServed  atomic.Int64
	predictionsFailed  atomic.Int64
	validationRejected atomic.Int64
	batchRequests      atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	sinkFailures       atomic.Int64
	latencyMicros      atomic.Int64

	generationsMu sync.Mutex
	generations   = map[string]*atomic.Int64{}
)

func Init() {
	predictionsServed.Store(0)
	predictionsFailed.Store(0)
	validationRejected.Store(0)
	batchRequests.Store(0)
	cacheHits.Store(0)
	cacheMisses.Store(0)
	sinkFailures.Store(0)
	latencyMicros.Store(0)

	generationsMu.Lock()
	generations = map[string]*atomic.Int64{}
	generationsMu.Unlock()
}

// ObservePrediction records one scored sample.
func ObservePrediction(generation string, latency time.Duration) {
	predictionsServed.Add(1)
	latencyMicros.Add(latency.Microseconds())
	generationCounter(generation).Add(1)
}

func ObserveFailure()   { predictionsFailed.Add(1) }
func ObserveRejection() { validationRejected.Add(1) }
func ObserveBatch()     { batchRequests.Add(1) }
func ObserveSinkError() { sinkFailures.Add(1) }

func ObserveCache(hit bool) {
	if hit {
		cacheHits.Add(1)
		return
	}
	cacheMisses.Add(1)
}

type Snapshot struct {
	Served, Failed, Rejected, Batches, CacheHits, CacheMisses, SinkFailures int64
}

func Read() Snapshot {
	return Snapshot{
		Served:       predictionsServed.Load(),
		Failed:       predictionsFailed.Load(),
		Rejected:     validationRejected.Load(),
		Batches:      batchRequests.Load(),
		CacheHits:    cacheHits.Load(),
		CacheMisses:  cacheMisses.Load(),
		SinkFailures: sinkFailures.Load(),
	}
}

func generationCounter(name string) *atomic.Int64 {
	generationsMu.Lock()
	defer generationsMu.Unlock()
	c, ok := generations[name]
	if !ok {
		c = &atomic.Int64{}
		generations[name] = c
	}
	return c
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP ikape_predictions_total Number of samples scored successfully.\n")
	fmt.Fprintf(w, "# TYPE ikape_predictions_total counter\n")
	fmt.Fprintf(w, "ikape_predictions_total %d\n", predictionsServed.Load())

	fmt.Fprintf(w, "# HELP ikape_prediction_failures_total Number of samples whose model evaluation failed.\n")
	fmt.Fprintf(w, "# TYPE ikape_prediction_failures_total counter\n")
	fmt.Fprintf(w, "ikape_prediction_failures_total %d\n", predictionsFailed.Load())

	fmt.Fprintf(w, "# HELP ikape_prediction_rejections_total Number of samples rejected as malformed.\n")
	fmt.Fprintf(w, "# TYPE ikape_prediction_rejections_total counter\n")
	fmt.Fprintf(w, "ikape_prediction_rejections_total %d\n", validationRejected.Load())

	fmt.Fprintf(w, "# HELP ikape_batch_requests_total Number of batch prediction requests.\n")
	fmt.Fprintf(w, "# TYPE ikape_batch_requests_total counter\n")
	fmt.Fprintf(w, "ikape_batch_requests_total %d\n", batchRequests.Load())

	fmt.Fprintf(w, "# HELP ikape_prediction_cache_hits_total Number of predictions served from cache.\n")
	fmt.Fprintf(w, "# TYPE ikape_prediction_cache_hits_total counter\n")
	fmt.Fprintf(w, "ikape_prediction_cache_hits_total %d\n", cacheHits.Load())

	fmt.Fprintf(w, "# HELP ikape_prediction_cache_misses_total Number of cache lookups that fell through to the models.\n")
	fmt.Fprintf(w, "# TYPE ikape_prediction_cache_misses_total counter\n")
	fmt.Fprintf(w, "ikape_prediction_cache_misses_total %d\n", cacheMisses.Load())

	fmt.Fprintf(w, "# HELP ikape_prediction_sink_failures_total Number of prediction log or event writes that failed.\n")
	fmt.Fprintf(w, "# TYPE ikape_prediction_sink_failures_total counter\n")
	fmt.Fprintf(w, "ikape_prediction_sink_failures_total %d\n", sinkFailures.Load())

	fmt.Fprintf(w, "# HELP ikape_prediction_latency_seconds_sum Total time spent scoring samples.\n")
	fmt.Fprintf(w, "# TYPE ikape_prediction_latency_seconds_sum counter\n")
	fmt.Fprintf(w, "ikape_prediction_latency_seconds_sum %f\n", float64(latencyMicros.Load())/1e6)

	generationsMu.Lock()
	names := make([]string, 0, len(generations))
	for name := range generations {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "# HELP ikape_generation_predictions_total Number of samples scored per model generation.\n")
	fmt.Fprintf(w, "# TYPE ikape_generation_predictions_total counter\n")
	for _, name := range names {
		fmt.Fprintf(w, "ikape_generation_predictions_total{generation=%q} %d\n", name, generations[name].Load())
	}
	generationsMu.Unlock()
}
