package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/keys"
	"gigshield.org/internal/ledger"
)

type registerValidatorRequest struct {
	Stake uint64 `json:"stake"`
}

type fundRequest struct {
	Amount uint64 `json:"amount"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	SOL     string `json:"sol"`
}

type listJournalResponse struct {
	Items     []ledger.Entry `json:"items"`
	NextAfter uint64         `json:"next_after"`
	AsOf      time.Time      `json:"as_of"`
}

func (a *API) registerValidator(w http.ResponseWriter, r *http.Request) {
	var req registerValidatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	v, err := a.svc.RegisterValidator(r.Context(), subject(r), req.Stake)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/validators/"+v.Authority)
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) unstakeValidator(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.UnstakeValidator(r.Context(), subject(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) getValidator(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Validator(r.Context(), chi.URLParam(r, "authority"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) fundAccount(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	identity := chi.URLParam(r, "account")
	bal, err := a.svc.Fund(r.Context(), identity, req.Amount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: keys.Wallet(identity), Amount: bal, SOL: domain.FormatSOL(bal)})
}

func (a *API) getBalance(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(chi.URLParam(r, "account"))
	if err := domain.ValidateIdentity(identity); err != nil {
		handleServiceError(w, r, err)
		return
	}
	account := keys.Wallet(identity)
	bal, err := a.svc.Balance(r.Context(), account)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: account, Amount: bal, SOL: domain.FormatSOL(bal)})
}

func (a *API) listJournal(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	after, err := parseUint(r.URL.Query().Get("after"), "after")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	items, next, err := a.svc.Journal(r.Context(), limit, after)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, listJournalResponse{Items: items, NextAfter: next, AsOf: time.Now().UTC()})
}

type listValidatorsResponse struct {
	Items []domain.Validator `json:"items"`
}

// listValidators serves the validator registry; ?active=true drops
// validators that have unstaked.
func (a *API) listValidators(w http.ResponseWriter, r *http.Request) {
	validators, err := a.svc.ListValidators(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	activeOnly, ok := activeFilter(w, r)
	if !ok {
		return
	}
	items := make([]domain.Validator, 0, len(validators))
	for _, v := range validators {
		if !activeOnly || v.Active {
			items = append(items, v)
		}
	}
	writeJSON(w, http.StatusOK, listValidatorsResponse{Items: items})
}
