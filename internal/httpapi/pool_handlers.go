package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/report"
	"gigshield.org/internal/shield"
)

type createPoolRequest struct {
	PoolID         string `json:"pool_id"`
	Category       string `json:"category"`
	PremiumRateBps uint16 `json:"premium_rate_bps"`
	MaxPayout      uint64 `json:"max_payout"`
}

type activationRequest struct {
	Active bool `json:"active"`
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

type poolView struct {
	domain.Pool
	VaultBalance uint64 `json:"vault_balance"`
}

type quoteResponse struct {
	Pool           string `json:"pool"`
	Earnings       uint64 `json:"earnings"`
	PremiumRateBps uint16 `json:"premium_rate_bps"`
	Premium        uint64 `json:"premium"`
	PremiumSOL     string `json:"premium_sol"`
}

func poolRef(r *http.Request) shield.PoolRef {
	return shield.PoolRef{Admin: chi.URLParam(r, "admin"), ID: chi.URLParam(r, "poolID")}
}

func (a *API) createPool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	pool, err := a.svc.CreatePool(r.Context(), subject(r), shield.PoolParams{
		ID:             req.PoolID,
		Category:       category,
		PremiumRateBps: req.PremiumRateBps,
		MaxPayout:      req.MaxPayout,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/pools/%s/%s", pool.Admin, pool.ID))
	writeJSON(w, http.StatusCreated, poolView{Pool: pool})
}

func (a *API) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := a.svc.Pool(r.Context(), poolRef(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	vault, err := a.svc.Balance(r.Context(), pool.Vault())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poolView{Pool: pool, VaultBalance: vault})
}

func (a *API) setPoolActive(w http.ResponseWriter, r *http.Request) {
	var req activationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pool, err := a.svc.SetPoolActive(r.Context(), subject(r), poolRef(r), req.Active)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poolView{Pool: pool})
}

func (a *API) quotePremium(w http.ResponseWriter, r *http.Request) {
	earnings, err := parseUint(r.URL.Query().Get("earnings"), "earnings")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pool, err := a.svc.Pool(r.Context(), poolRef(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	premium := pool.QuotePremium(earnings)
	writeJSON(w, http.StatusOK, quoteResponse{
		Pool:           pool.Key(),
		Earnings:       earnings,
		PremiumRateBps: pool.PremiumRateBps,
		Premium:        premium,
		PremiumSOL:     domain.FormatSOL(premium),
	})
}

func (a *API) depositPremium(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	policy, err := a.svc.DepositPremium(r.Context(), subject(r), poolRef(r), req.Amount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (a *API) getPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := a.svc.Policy(r.Context(), poolRef(r), chi.URLParam(r, "worker"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (a *API) setPolicyActive(w http.ResponseWriter, r *http.Request) {
	var req activationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	policy, err := a.svc.SetPolicyActive(r.Context(), subject(r), poolRef(r), chi.URLParam(r, "worker"), req.Active)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (a *API) poolStatement(w http.ResponseWriter, r *http.Request) {
	ref := poolRef(r)
	pool, err := a.svc.Pool(r.Context(), ref)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	claims, err := a.svc.ListClaims(r.Context(), ref)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	vault, err := a.svc.Balance(r.Context(), pool.Vault())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	data, err := report.PoolStatement(pool, vault, claims, time.Now())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s-statement.xlsx", pool.Admin, pool.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type listPoolsResponse struct {
	Items []domain.Pool `json:"items"`
}

// listPools serves every pool; ?active=true keeps only open ones.
func (a *API) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := a.svc.ListPools(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	activeOnly, ok := activeFilter(w, r)
	if !ok {
		return
	}
	items := make([]domain.Pool, 0, len(pools))
	for _, p := range pools {
		if !activeOnly || p.Active {
			items = append(items, p)
		}
	}
	writeJSON(w, http.StatusOK, listPoolsResponse{Items: items})
}

// activeFilter parses the optional active query flag.
func activeFilter(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("active")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(w, r, "active must be a boolean")
		return false, false
	}
	return v, true
}
