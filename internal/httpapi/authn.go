package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gigshield.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth requires a valid bearer token and attaches its principal.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gigshield"`)
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		principal, err := auth.Authenticate(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gigshield", error="invalid_token"`)
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "internal", "authentication error")
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission rejects callers whose roles do not grant perm.
func requirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="gigshield"`)
				writeError(w, r, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			if !principal.HasPermission(perm) {
				writeError(w, r, http.StatusForbidden, "authorization", "missing permission "+perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// subject is the caller identity; withAuth guarantees it on protected routes.
func subject(r *http.Request) string {
	s, _ := auth.SubjectFromContext(r.Context())
	return s
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
