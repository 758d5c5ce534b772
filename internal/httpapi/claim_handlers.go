package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/shield"
)

type submitClaimRequest struct {
	ClaimID      string `json:"claim_id"`
	Amount       uint64 `json:"amount"`
	EvidenceHash string `json:"evidence_hash"`
	Description  string `json:"description"`
}

type voteRequest struct {
	Approve *bool `json:"approve"`
}

type listClaimsResponse struct {
	Items []domain.Claim `json:"items"`
}

func (a *API) submitClaim(w http.ResponseWriter, r *http.Request) {
	var req submitClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	evidence, err := domain.ParseHash(req.EvidenceHash)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	claim, err := a.svc.SubmitClaim(r.Context(), subject(r), poolRef(r), shield.ClaimParams{
		ID:           req.ClaimID,
		Amount:       req.Amount,
		EvidenceHash: evidence,
		Description:  req.Description,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+claim.ID)
	writeJSON(w, http.StatusCreated, claim)
}

func (a *API) listClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := a.svc.ListClaims(r.Context(), poolRef(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if claims == nil {
		claims = []domain.Claim{}
	}
	writeJSON(w, http.StatusOK, listClaimsResponse{Items: claims})
}

func (a *API) getClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := a.svc.Claim(r.Context(), poolRef(r), chi.URLParam(r, "claimID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.Approve == nil {
		badRequest(w, r, "approve is required")
		return
	}
	res, err := a.svc.CastVote(r.Context(), subject(r), poolRef(r), chi.URLParam(r, "claimID"), *req.Approve)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) getVote(w http.ResponseWriter, r *http.Request) {
	vote, err := a.svc.Vote(r.Context(), poolRef(r), chi.URLParam(r, "claimID"), chi.URLParam(r, "validator"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

func (a *API) resolveExpired(w http.ResponseWriter, r *http.Request) {
	claim, err := a.svc.ResolveExpired(r.Context(), poolRef(r), chi.URLParam(r, "claimID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (a *API) withdrawPayout(w http.ResponseWriter, r *http.Request) {
	claim, err := a.svc.WithdrawPayout(r.Context(), subject(r), poolRef(r), chi.URLParam(r, "claimID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}
