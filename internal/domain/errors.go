package domain

import "errors"

// Kind classifies a failed precondition so transports can map it once.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindState         Kind = "state"
	KindTemporal      Kind = "temporal"
	KindEconomic      Kind = "economic"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindInternal      Kind = "internal"
)

var (
	ErrInvalidPremiumRate = errors.New("invalid premium rate")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrPoolIDTooLong      = errors.New("pool id too long (max 32 chars)")
	ErrClaimIDTooLong     = errors.New("claim id too long (max 32 chars)")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidEvidence    = errors.New("evidence hash must be 32 bytes")

	ErrPoolInactive      = errors.New("pool is inactive")
	ErrPolicyInactive    = errors.New("policy is inactive")
	ErrValidatorInactive = errors.New("validator is inactive")
	ErrClaimNotPending   = errors.New("claim is not pending")
	ErrClaimNotApproved  = errors.New("claim not approved")

	ErrVotingExpired         = errors.New("voting period has expired")
	ErrVotingNotExpired      = errors.New("voting period has not expired yet")
	ErrUnstakeCooldownNotMet = errors.New("unstake cooldown not met (24h)")

	ErrNoPremiumsPaid          = errors.New("no premiums paid")
	ErrClaimExceedsMax         = errors.New("claim exceeds max payout")
	ErrClaimExceedsPremiumCap  = errors.New("claim exceeds premium cap (max 10x premiums paid)")
	ErrInsufficientPoolFunds   = errors.New("insufficient pool funds")
	ErrInsufficientStake       = errors.New("insufficient stake (min 1 SOL)")
	ErrInsufficientWalletFunds = errors.New("insufficient wallet funds")
	ErrAmountOverflow          = errors.New("amount overflow")

	ErrUnauthorized = errors.New("unauthorized")

	ErrPoolNotFound      = errors.New("pool not found")
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrClaimNotFound     = errors.New("claim not found")
	ErrValidatorNotFound = errors.New("validator not found")
	ErrVoteNotFound      = errors.New("vote not found")

	ErrPoolExists      = errors.New("pool already exists")
	ErrClaimExists     = errors.New("claim already exists")
	ErrValidatorExists = errors.New("validator already registered")
	ErrAlreadyVoted    = errors.New("validator already voted on this claim")
)

var kinds = map[error]Kind{
	ErrInvalidPremiumRate: KindValidation,
	ErrInvalidAmount:      KindValidation,
	ErrPoolIDTooLong:      KindValidation,
	ErrClaimIDTooLong:     KindValidation,
	ErrDescriptionTooLong: KindValidation,
	ErrInvalidIdentifier:  KindValidation,
	ErrInvalidCategory:    KindValidation,
	ErrInvalidEvidence:    KindValidation,

	ErrPoolInactive:      KindState,
	ErrPolicyInactive:    KindState,
	ErrValidatorInactive: KindState,
	ErrClaimNotPending:   KindState,
	ErrClaimNotApproved:  KindState,

	ErrVotingExpired:         KindTemporal,
	ErrVotingNotExpired:      KindTemporal,
	ErrUnstakeCooldownNotMet: KindTemporal,

	ErrNoPremiumsPaid:          KindEconomic,
	ErrClaimExceedsMax:         KindEconomic,
	ErrClaimExceedsPremiumCap:  KindEconomic,
	ErrInsufficientPoolFunds:   KindEconomic,
	ErrInsufficientStake:       KindEconomic,
	ErrInsufficientWalletFunds: KindEconomic,
	ErrAmountOverflow:          KindEconomic,

	ErrUnauthorized: KindAuthorization,

	ErrPoolNotFound:      KindNotFound,
	ErrPolicyNotFound:    KindNotFound,
	ErrClaimNotFound:     KindNotFound,
	ErrValidatorNotFound: KindNotFound,
	ErrVoteNotFound:      KindNotFound,

	ErrPoolExists:      KindConflict,
	ErrClaimExists:     KindConflict,
	ErrValidatorExists: KindConflict,
	ErrAlreadyVoted:    KindConflict,
}

// KindOf reports the category of err, or KindInternal for errors that are
// not precondition failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
