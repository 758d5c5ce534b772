package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"gigshield.org/internal/audit"
	"gigshield.org/internal/auth"
)

type tokenRequest struct {
	User  string   `json:"user"`
	Roles []string `json:"roles"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken issues development tokens. Worker and validator tokens are
// open; admin tokens need an admin bearer. The route is not mounted in
// production.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var issuer *auth.Principal
	if r.Header.Get(authHeader) != "" {
		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err == nil {
			var p auth.Principal
			if p, err = auth.Authenticate(raw); err == nil {
				issuer = &p
			}
		}
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gigshield", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		badRequest(w, r, "user is required")
		return
	}

	token, err := auth.Issue(issuer, user, req.Roles, tokenTTL)
	switch {
	case errors.Is(err, auth.ErrRoleNotGrantable):
		writeError(w, r, http.StatusForbidden, "authorization", err.Error())
		return
	case errors.Is(err, auth.ErrInvalidRoles):
		badRequest(w, r, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, "internal", "token generation failed")
		return
	}

	fields := []zap.Field{
		zap.String("user", user),
		zap.Strings("roles", req.Roles),
		zap.Time("expires_at", token.ExpiresAt),
	}
	if issuer != nil {
		fields = append(fields, zap.String("issued_by", issuer.Subject))
	}
	_ = audit.LogEvent(r.Context(), "auth.token.issued", fields...)

	writeJSON(w, http.StatusOK, token)
}
