package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "gigshield"
	secretEnvVariable = "GIGSHIELD_AUTH_SECRET"
	clockSkew         = 5 * time.Second
)

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRoleNotGrantable is returned when an issuer asks for a role it may
	// not hand out.
	ErrRoleNotGrantable = errors.New("role requires an admin issuer")
	// ErrInvalidRoles is returned for an empty or unknown role list.
	ErrInvalidRoles = errors.New("invalid roles")

	errMissingSecret = errors.New("auth secret is not configured")
)

// signingKey holds the HS256 secret, read from the environment on first use
// unless SetSecret installed one.
type signingKey struct {
	mu     sync.Mutex
	loaded bool
	value  []byte
}

var key signingKey

func (k *signingKey) bytes() ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.loaded {
		k.value = []byte(strings.TrimSpace(os.Getenv(secretEnvVariable)))
		k.loaded = true
	}
	if len(k.value) == 0 {
		return nil, errMissingSecret
	}
	return k.value, nil
}

func (k *signingKey) set(value string, loaded bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.value = []byte(strings.TrimSpace(value))
	k.loaded = loaded
}

// SetSecret installs the signing secret directly, bypassing the environment.
func SetSecret(value string) { key.set(value, true) }

// ResetSecretForTests forgets the installed secret so the next use rereads
// the environment.
func ResetSecretForTests() { key.set("", false) }

// Claims carried by every GigShield token. The subject is the caller
// identity the service checks ownership against.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Token is a signed bearer token and its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue signs a token for subject on behalf of the issuing principal; nil
// means an anonymous caller. Admin is only granted by an admin.
func Issue(by *Principal, subject string, roles []string, ttl time.Duration) (Token, error) {
	roles = dedupeRoles(roles)
	for _, role := range roles {
		if !KnownRole(role) {
			return Token{}, fmt.Errorf("%w: unknown role %q", ErrInvalidRoles, role)
		}
		if role == RoleAdmin && (by == nil || !by.HasRole(RoleAdmin)) {
			return Token{}, ErrRoleNotGrantable
		}
	}
	if len(roles) == 0 {
		return Token{}, fmt.Errorf("%w: roles are required", ErrInvalidRoles)
	}
	now := time.Now().UTC()
	value, err := sign(subject, roles, now, ttl)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: value, ExpiresAt: now.Add(ttl).Truncate(time.Second)}, nil
}

// GenerateToken signs a token with no issuer restriction. It is meant for
// operators holding the shared secret.
func GenerateToken(subject string, roles []string, ttl time.Duration) (string, error) {
	return sign(subject, dedupeRoles(roles), time.Now().UTC(), ttl)
}

func sign(subject string, roles []string, now time.Time, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secret, err := key.bytes()
	if err != nil {
		return "", err
	}
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithIssuer(issuer),
	jwt.WithExpirationRequired(),
	jwt.WithIssuedAt(),
	jwt.WithLeeway(clockSkew),
)

// ParseAndValidate verifies signature, issuer and lifetime. Any failure is
// reported as ErrInvalidToken; a missing secret is returned as is.
func ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secret, err := key.bytes()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	claims.Roles = dedupeRoles(claims.Roles)
	return claims, nil
}

func dedupeRoles(roles []string) []string {
	var out []string
	seen := make(map[string]bool, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	return out
}
