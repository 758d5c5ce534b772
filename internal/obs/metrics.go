package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gigshield_ready",
		Help: "1 when the store is reachable and the API accepts traffic.",
	})

	premiumsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gigshield_premiums_lamports_total",
		Help: "Premium lamports deposited into pools.",
	})

	claimsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gigshield_claims_submitted_total",
		Help: "Claims accepted for voting.",
	})

	votesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigshield_votes_total",
			Help: "Validator votes by side.",
		},
		[]string{"side"},
	)

	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigshield_claim_resolutions_total",
			Help: "Claim resolutions by outcome and path (vote or expiry).",
		},
		[]string{"outcome", "path"},
	)

	payoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gigshield_payouts_lamports_total",
		Help: "Lamports withdrawn by workers for approved claims.",
	})

	initOnce sync.Once
)

// Init registers all collectors in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration, ready,
			premiumsTotal, claimsSubmitted, votesTotal, resolutionsTotal, payoutsTotal,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

func ObservePremium(amount uint64) { premiumsTotal.Add(float64(amount)) }

func ObserveClaimSubmitted() { claimsSubmitted.Inc() }

func ObserveVote(approve bool) {
	side := "against"
	if approve {
		side = "for"
	}
	votesTotal.WithLabelValues(side).Inc()
}

// ObserveResolution counts a finalized claim; path is "vote" or "expiry".
func ObserveResolution(outcome, path string) {
	resolutionsTotal.WithLabelValues(outcome, path).Inc()
}

func ObservePayout(amount uint64) { payoutsTotal.Add(float64(amount)) }

// Instrument records RPS, latency and in-flight requests. Paths are labelled
// by chi route pattern when one matched, otherwise by CanonicalPath.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			path = rc.RoutePattern()
		}
		if path == "" {
			path = CanonicalPath(r.URL.Path)
		}
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// CanonicalPath replaces identity segments of API paths with placeholders
// so label cardinality stays bounded.
func CanonicalPath(raw string) string {
	path, _, _ := strings.Cut(raw, "?")
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "pools":
		for i := 2; i < len(parts) && i < 4; i++ {
			parts[i] = []string{":admin", ":pool"}[i-2]
		}
		for i := 4; i+1 < len(parts); i++ {
			switch parts[i] {
			case "policies", "claims", "votes":
				parts[i+1] = ":" + strings.TrimSuffix(parts[i], "s")
				if parts[i] == "policies" {
					parts[i+1] = ":worker"
				}
				i++
			}
		}
	case "validators":
		if parts[2] != "unstake" {
			parts[2] = ":authority"
		}
	case "accounts":
		parts[2] = ":account"
	default:
		return path
	}
	return "/" + strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
