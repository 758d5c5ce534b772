package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"

	"gigshield.org/internal/auth"
	"gigshield.org/internal/obs"
	"gigshield.org/internal/shield"
	"gigshield.org/internal/stream"
)

const serviceName = "gigshield-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the backing services that are configured.
type ReadyProbe struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP layer over shield.Service.
type API struct {
	svc        *shield.Service
	stream     *stream.Stream
	readiness  readinessChecker
	version    string
	rateBurst  int
	ratePerSec int
	production bool
}

// Option configures an API.
type Option func(*API)

// WithProduction disables the development token endpoint; tokens then come
// from an identity provider sharing the signing secret.
func WithProduction(production bool) Option {
	return func(a *API) { a.production = production }
}

func New(rp readinessChecker, version string, svc *shield.Service, st *stream.Stream, opts ...Option) *API {
	if rp == nil {
		rp = ReadyProbe{}
	}
	a := &API{
		svc:        svc,
		stream:     st,
		readiness:  rp,
		version:    version,
		rateBurst:  20,
		ratePerSec: 10,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetRateLimit configures the per-IP token bucket.
func (a *API) SetRateLimit(burst, perSecond int) {
	if burst > 0 {
		a.rateBurst = burst
	}
	if perSecond > 0 {
		a.ratePerSec = perSecond
	}
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, LoggingJSON, SecurityHeaders, CORS, obs.Instrument)
	r.Use(func(next http.Handler) http.Handler { return RateLimit(next, a.rateBurst, a.ratePerSec) })

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())
	if !a.production {
		r.Post("/v1/auth/token", a.handleAuthToken)
	}

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)

		r.Get("/v1/pools", a.listPools)
		r.With(requirePermission(auth.PermPoolCreate)).Post("/v1/pools", a.createPool)
		r.Route("/v1/pools/{admin}/{poolID}", func(r chi.Router) {
			r.Get("/", a.getPool)
			r.With(requirePermission(auth.PermPoolManage)).Post("/activation", a.setPoolActive)
			r.Get("/quote", a.quotePremium)
			r.Get("/statement.xlsx", a.poolStatement)
			r.With(requirePermission(auth.PermPremiumDeposit)).Post("/premiums", a.depositPremium)
			r.Get("/policies/{worker}", a.getPolicy)
			r.With(requirePermission(auth.PermPoolManage)).Post("/policies/{worker}/activation", a.setPolicyActive)

			r.With(requirePermission(auth.PermClaimSubmit)).Post("/claims", a.submitClaim)
			r.Get("/claims", a.listClaims)
			r.Route("/claims/{claimID}", func(r chi.Router) {
				r.Get("/", a.getClaim)
				r.With(requirePermission(auth.PermClaimVote)).Post("/votes", a.castVote)
				r.Get("/votes/{validator}", a.getVote)
				r.With(requirePermission(auth.PermClaimResolve)).Post("/resolve", a.resolveExpired)
				r.With(requirePermission(auth.PermClaimWithdraw)).Post("/withdraw", a.withdrawPayout)
			})
		})

		r.Get("/v1/validators", a.listValidators)
		r.With(requirePermission(auth.PermValidatorRegister)).Post("/v1/validators", a.registerValidator)
		r.With(requirePermission(auth.PermValidatorRegister)).Post("/v1/validators/unstake", a.unstakeValidator)
		r.Get("/v1/validators/{authority}", a.getValidator)

		r.With(requirePermission(auth.PermAccountFund)).Post("/v1/accounts/{account}/fund", a.fundAccount)
		r.Get("/v1/accounts/{account}/balance", a.getBalance)
		r.With(requirePermission(auth.PermJournalRead)).Get("/v1/journal", a.listJournal)

		r.Get("/v1/stream", a.Stream)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readiness.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
