package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hanziwordle"

// Recorder holds the bot and importer collectors. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	requests  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	results   *prometheus.HistogramVec
	cacheHits prometheus.Counter
	failures  prometheus.Counter

	imported prometheus.Counter
	skipped  *prometheus.CounterVec
}

// NewRecorder registers all collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search commands received, by command.",
		}, []string{"command"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_rejected_total",
			Help:      "Search commands rejected before reaching the store, by command and error kind.",
		}, []string{"command", "kind"}),
		results: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of words returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10},
		}, []string{"command"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_hits_total",
			Help:      "Searches answered from the result cache.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_store_failures_total",
			Help:      "Searches that failed in the word store.",
		}),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_words_total",
			Help:      "Words newly stored by the importer.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_skipped_total",
			Help:      "Import records skipped, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(r.requests, r.rejected, r.results, r.cacheHits, r.failures, r.imported, r.skipped)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Request counts a command received.
func (r *Recorder) Request(command string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(command).Inc()
}

// Rejected counts a query refused with the given error kind.
func (r *Recorder) Rejected(command, kind string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(command, kind).Inc()
}

// Results records how many words a query returned.
func (r *Recorder) Results(command string, n int) {
	if r == nil {
		return
	}
	r.results.WithLabelValues(command).Observe(float64(n))
}

// CacheHit counts a query answered from the result cache.
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// StoreFailure counts a query the store failed to run.
func (r *Recorder) StoreFailure() {
	if r == nil {
		return
	}
	r.failures.Inc()
}

// Imported adds n newly stored words.
func (r *Recorder) Imported(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.imported.Add(float64(n))
}

// Skipped counts an import record dropped for reason.
func (r *Recorder) Skipped(reason string) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(reason).Inc()
}
