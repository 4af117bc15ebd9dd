package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"llamagate/internal/admission"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamagate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llamagate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llamagate",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	admissionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamagate",
			Subsystem: "admission",
			Name:      "outcomes_total",
			Help:      "Admission outcomes by kind",
		},
		[]string{"outcome"},
	)

	admissionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llamagate",
			Subsystem: "admission",
			Name:      "queue_depth",
			Help:      "Requests waiting for a generation slot",
		},
	)

	admissionInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llamagate",
			Subsystem: "admission",
			Name:      "inflight",
			Help:      "Requests executing against the engine",
		},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llamagate",
			Subsystem: "admission",
			Name:      "submit_duration_seconds",
			Help:      "End-to-end submit duration including queue wait",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight,
		admissionOutcomes, admissionQueueDepth, admissionInflight, generationDuration,
	)
}

// observeAdmission records the outcome of one Submit and refreshes the
// queue gauges from the controller's counters.
func observeAdmission(stats admission.Stats, err error, dur time.Duration) {
	admissionOutcomes.WithLabelValues(outcomeLabel(err)).Inc()
	admissionQueueDepth.Set(float64(stats.Queued))
	admissionInflight.Set(float64(stats.Inflight))
	if err == nil {
		generationDuration.Observe(dur.Seconds())
	}
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
