// Package domain defines the insurance records and the invariants each one
// enforces on its own fields. Cross-record rules live in package shield.
package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gigshield.org/internal/keys"
)

const (
	VotingPeriod      = 48 * time.Hour
	UnstakeCooldown   = 24 * time.Hour
	ClaimMultiplier   = 10
	MinStake          = 1_000_000_000
	InitialReputation = 100
	ReputationReward  = 5

	MaxPoolIDLen      = 32
	MaxClaimIDLen     = 32
	MaxDescriptionLen = 256
	MaxPremiumRateBps = 1000
)

// Category is the gig sector a pool insures.
type Category string

const (
	CategoryRideShare    Category = "rideshare"
	CategoryDelivery     Category = "delivery"
	CategoryFreelance    Category = "freelance"
	CategoryConstruction Category = "construction"
	CategoryHealthcare   Category = "healthcare"
	CategoryOther        Category = "other"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryRideShare, CategoryDelivery, CategoryFreelance,
	CategoryConstruction, CategoryHealthcare, CategoryOther,
}

// ParseCategory accepts the canonical names case-insensitively, ignoring
// separators ("RideShare", "ride_share" and "rideshare" are equal).
func ParseCategory(s string) (Category, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range Categories {
		if string(c) == norm {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Hash is an opaque 32-byte content commitment, hex encoded on the wire.
type Hash [32]byte

// ParseHash decodes 64 hex characters.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(raw) != len(h) {
		return h, ErrInvalidEvidence
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ValidateIdentifier checks a human id (pool or claim id) for embedding in
// a record key.
func ValidateIdentifier(id string, max int, tooLong error) error {
	if len(id) > max {
		return tooLong
	}
	if keys.ValidIdentity(id) != nil {
		return ErrInvalidIdentifier
	}
	return nil
}

// ValidateIdentity checks a caller identity.
func ValidateIdentity(id string) error {
	if keys.ValidIdentity(id) != nil {
		return ErrInvalidIdentifier
	}
	return nil
}

// Truncate drops sub-second precision; every stored timestamp is whole
// seconds, like the clock the deadlines are defined against.
func Truncate(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }
