package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "/",
		"/metrics":                             "/metrics",
		"/v1/pools":                            "/v1/pools",
		"/v1/pools/alice/p1":                   "/v1/pools/:admin/:pool",
		"/v1/pools/alice/p1/claims/c9/votes/v": "/v1/pools/:admin/:pool/claims/:claim/votes/:vote",
		"/v1/pools/alice/p1/policies/w/activation": "/v1/pools/:admin/:pool/policies/:worker/activation",
		"/v1/pools/alice/p1/claims?limit=10":       "/v1/pools/:admin/:pool/claims",
		"/v1/validators/unstake":                   "/v1/validators/unstake",
		"/v1/validators/bob":                       "/v1/validators/:authority",
		"/v1/accounts/wallet/balance":              "/v1/accounts/:account/balance",
		"/v1/journal":                              "/v1/journal",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/v1/validators/{authority}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/validators/{authority}", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/validators/bob", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/validators/{authority}", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(votesTotal.WithLabelValues("for"))
	ObserveVote(true)
	if got := testutil.ToFloat64(votesTotal.WithLabelValues("for")) - before; got != 1 {
		t.Fatalf("votes for delta=%v", got)
	}
	SetReady(true)
	if testutil.ToFloat64(ready) != 1 {
		t.Fatal("ready gauge not set")
	}
	SetReady(false)
	if testutil.ToFloat64(ready) != 0 {
		t.Fatal("ready gauge not cleared")
	}
}

func TestSetLoggerRestores(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := SetLogger(zap.New(core))
	LogRequest(zap.String("path", "/healthz"), zap.Int("status", 200))
	restore()
	LogRequest(zap.String("path", "/ignored"))

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "http_request" || entry.ContextMap()["path"] != "/healthz" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
