// Package keys derives the deterministic record and custody addresses used by
// the store. Addresses are slash-separated paths, so no component may
// contain a slash.
package keys

import (
	"errors"
	"strings"
)

const MaxIdentityLen = 64

var ErrInvalidIdentity = errors.New("invalid identity")

// Record kinds; the first path segment of every record key.
const (
	KindPool      = "pool"
	KindPolicy    = "policy"
	KindClaim     = "claim"
	KindVote      = "vote"
	KindValidator = "validator"
)

// ValidIdentity reports whether id can be embedded in a key.
func ValidIdentity(id string) error {
	if id == "" || len(id) > MaxIdentityLen || strings.ContainsAny(id, "/ \t\r\n") {
		return ErrInvalidIdentity
	}
	return nil
}

func Pool(admin, poolID string) string { return join(KindPool, admin, poolID) }

func Policy(poolKey, worker string) string { return join(KindPolicy, poolKey, worker) }

func Claim(poolKey, claimID string) string { return join(KindClaim, poolKey, claimID) }

// ClaimPrefix is the key prefix shared by every claim of a pool.
func ClaimPrefix(poolKey string) string { return join(KindClaim, poolKey) + "/" }

func Vote(claimKey, validator string) string { return join(KindVote, claimKey, validator) }

func Validator(authority string) string { return join(KindValidator, authority) }

// Custody accounts.

func Wallet(identity string) string { return "wallet/" + identity }

func PoolVault(poolKey string) string { return "pool-vault/" + poolKey }

func ValidatorVault(authority string) string { return "val-vault/" + authority }

// SplitPool returns the admin and pool id encoded in a pool key.
func SplitPool(poolKey string) (admin, poolID string, ok bool) {
	parts := strings.Split(poolKey, "/")
	if len(parts) != 3 || parts[0] != KindPool || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// Kind returns the record kind of key.
func Kind(key string) string {
	kind, _, _ := strings.Cut(key, "/")
	return kind
}

func join(parts ...string) string { return strings.Join(parts, "/") }
