package domain

import (
	"time"

	"gigshield.org/internal/keys"
)

// Validator is a staked peer entitled to vote on claims.
type Validator struct {
	Authority    string    `json:"authority"`
	Stake        uint64    `json:"stake"`
	ClaimsVoted  uint32    `json:"claims_voted"`
	Reputation   uint16    `json:"reputation"`
	Active       bool      `json:"is_active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// NewValidator checks the stake floor and returns an active validator at
// the initial reputation.
func NewValidator(authority string, stake uint64, at time.Time) (Validator, error) {
	if err := ValidateIdentity(authority); err != nil {
		return Validator{}, err
	}
	if stake < MinStake {
		return Validator{}, ErrInsufficientStake
	}
	return Validator{
		Authority:    authority,
		Stake:        stake,
		Reputation:   InitialReputation,
		Active:       true,
		RegisteredAt: Truncate(at),
	}, nil
}

func (v Validator) Key() string { return keys.Validator(v.Authority) }

func (v Validator) Vault() string { return keys.ValidatorVault(v.Authority) }

// CountVote records participation in one claim.
func (v *Validator) CountVote() {
	if v.ClaimsVoted < ^uint32(0) {
		v.ClaimsVoted++
	}
}

// Reward raises reputation by ReputationReward, saturating.
func (v *Validator) Reward() {
	if v.Reputation > ^uint16(0)-ReputationReward {
		v.Reputation = ^uint16(0)
		return
	}
	v.Reputation += ReputationReward
}

// Unstake deactivates the validator and zeroes its stake, returning the
// amount to release. The caller moves the funds.
func (v *Validator) Unstake(signer string, now time.Time) (uint64, error) {
	if !v.Active {
		return 0, ErrValidatorInactive
	}
	if signer != v.Authority {
		return 0, ErrUnauthorized
	}
	if Truncate(now).Sub(v.RegisteredAt) < UnstakeCooldown {
		return 0, ErrUnstakeCooldownNotMet
	}
	released := v.Stake
	v.Stake = 0
	v.Active = false
	return released, nil
}
