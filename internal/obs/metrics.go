package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Security metrics
var (
	authOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_authentication_total",
			Help: "Bearer token pipeline outcomes.",
		},
		[]string{"outcome"},
	)

	accessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_access_decisions_total",
			Help: "Role-based access decisions.",
		},
		[]string{"decision"},
	)

	credentialFlows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_credential_flows_total",
			Help: "Register, login and refresh attempts by result.",
		},
		[]string{"flow", "result"},
	)

	auditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_audit_writes_total",
			Help: "Audit trail writes by result.",
		},
		[]string{"result"},
	)

	rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "accountd_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "accountd_ready",
		Help: "1 when the service accepts traffic.",
	})
)

var initOnce sync.Once

// Init registers all collectors in the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			authOutcomes, accessDecisions, credentialFlows, auditWrites,
			rateLimited, ready,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuthentication counts one pipeline outcome (authenticated,
// anonymous, expired, invalid, error).
func ObserveAuthentication(outcome string) {
	authOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveAccessDecision counts an allow/deny decision.
func ObserveAccessDecision(decision string) {
	accessDecisions.WithLabelValues(decision).Inc()
}

// ObserveCredentialFlow counts a register/login/refresh attempt.
func ObserveCredentialFlow(flow string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	credentialFlows.WithLabelValues(flow, result).Inc()
}

// ObserveAuditWrite counts an audit persistence attempt.
func ObserveAuditWrite(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	auditWrites.WithLabelValues(result).Inc()
}

// ObserveRateLimited counts a request rejected with 429.
func ObserveRateLimited() {
	rateLimited.Inc()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument records RPS, latency and in-flight requests per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

var userSubroutes = map[string]bool{
	"change-password": true,
	"change-email":    true,
	"roles":           true,
	"delete":          true,
}

// CanonicalPath collapses usernames in /user/{username} routes so label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/user/") {
		return path
	}
	parts := strings.Split(strings.TrimPrefix(path, "/user/"), "/")
	if parts[0] == "me" || parts[0] == "" {
		return path
	}
	switch {
	case len(parts) == 1:
		return "/user/:username"
	case len(parts) == 2 && userSubroutes[parts[1]]:
		return "/user/:username/" + parts[1]
	default:
		return path
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
