package domain

import (
	"time"

	"gigshield.org/internal/keys"
)

// Vote is one validator's ballot on one claim. Its key is unique per
// (claim, validator), which is what prevents double voting.
type Vote struct {
	Claim     string    `json:"claim"`
	ClaimID   string    `json:"claim_id"`
	Validator string    `json:"validator"`
	Approve   bool      `json:"approve"`
	VotedAt   time.Time `json:"voted_at"`
}

func NewVote(claim Claim, validator string, approve bool, at time.Time) Vote {
	return Vote{Claim: claim.Key(), ClaimID: claim.ID, Validator: validator, Approve: approve, VotedAt: Truncate(at)}
}

func (v Vote) Key() string { return keys.Vote(v.Claim, v.Validator) }
