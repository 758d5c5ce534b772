package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gigshield.org/internal/consensus"
	"gigshield.org/internal/keys"
)

// Status is a claim's lifecycle state. Transitions happen only through the
// Claim methods, so a stored claim can never skip a state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusRejected || s == StatusPaid }

// Claim is a worker's request for a payout from a pool.
type Claim struct {
	Pool         string
	Policy       string
	Worker       string
	ID           string
	Amount       uint64
	Description  string
	EvidenceHash Hash
	Votes        consensus.Tally
	CreatedAt    time.Time
	Deadline     time.Time
	ResolvedAt   *time.Time
	status       Status
}

// NewClaim validates the claim's own fields and opens its voting window at
// submittedAt.
func NewClaim(poolKey, worker, claimID string, amount uint64, description string, evidence Hash, submittedAt time.Time) (Claim, error) {
	if err := ValidateIdentifier(claimID, MaxClaimIDLen, ErrClaimIDTooLong); err != nil {
		return Claim{}, err
	}
	if amount == 0 {
		return Claim{}, ErrInvalidAmount
	}
	if len(description) > MaxDescriptionLen {
		return Claim{}, ErrDescriptionTooLong
	}
	at := Truncate(submittedAt)
	return Claim{
		Pool:         poolKey,
		Policy:       keys.Policy(poolKey, worker),
		Worker:       worker,
		ID:           claimID,
		Amount:       amount,
		Description:  description,
		EvidenceHash: evidence,
		CreatedAt:    at,
		Deadline:     at.Add(VotingPeriod),
		status:       StatusPending,
	}, nil
}

func (c Claim) Key() string { return keys.Claim(c.Pool, c.ID) }

func (c Claim) Status() Status { return c.status }

// VotingOpen reports whether now is within the window; the deadline second
// itself still accepts votes.
func (c Claim) VotingOpen(now time.Time) bool { return !Truncate(now).After(c.Deadline) }

// RecordVote counts a vote on a pending claim inside its window and returns
// the live consensus outcome, resolving the claim when it is decided.
func (c *Claim) RecordVote(approve bool, now time.Time) (consensus.Outcome, error) {
	if c.status != StatusPending {
		return consensus.Undecided, ErrClaimNotPending
	}
	if !c.VotingOpen(now) {
		return consensus.Undecided, ErrVotingExpired
	}
	c.Votes = c.Votes.Add(approve)
	outcome := consensus.Live(c.Votes)
	if outcome != consensus.Undecided {
		c.resolve(outcome == consensus.Approve, now)
	}
	return outcome, nil
}

// Expire resolves a pending claim whose window has closed, failing safe to
// rejection without an approving supermajority.
func (c *Claim) Expire(now time.Time) (consensus.Outcome, error) {
	if c.status != StatusPending {
		return consensus.Undecided, ErrClaimNotPending
	}
	if c.VotingOpen(now) {
		return consensus.Undecided, ErrVotingNotExpired
	}
	outcome := consensus.AtExpiry(c.Votes)
	c.resolve(outcome == consensus.Approve, now)
	return outcome, nil
}

// MarkPaid moves an approved claim to paid. It is the only way out of
// approved, which makes a second withdrawal impossible.
func (c *Claim) MarkPaid() error {
	if c.status != StatusApproved {
		return ErrClaimNotApproved
	}
	c.status = StatusPaid
	return nil
}

func (c *Claim) resolve(approved bool, at time.Time) {
	c.status = StatusRejected
	if approved {
		c.status = StatusApproved
	}
	t := Truncate(at)
	c.ResolvedAt = &t
}

type claimJSON struct {
	Pool         string     `json:"pool"`
	Policy       string     `json:"policy"`
	Worker       string     `json:"worker"`
	ID           string     `json:"claim_id"`
	Amount       uint64     `json:"amount"`
	Description  string     `json:"description"`
	EvidenceHash Hash       `json:"evidence_hash"`
	Status       Status     `json:"status"`
	VotesFor     uint32     `json:"votes_for"`
	VotesAgainst uint32     `json:"votes_against"`
	CreatedAt    time.Time  `json:"created_at"`
	Deadline     time.Time  `json:"voting_deadline"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func (c Claim) MarshalJSON() ([]byte, error) {
	return json.Marshal(claimJSON{
		Pool:         c.Pool,
		Policy:       c.Policy,
		Worker:       c.Worker,
		ID:           c.ID,
		Amount:       c.Amount,
		Description:  c.Description,
		EvidenceHash: c.EvidenceHash,
		Status:       c.status,
		VotesFor:     c.Votes.For,
		VotesAgainst: c.Votes.Against,
		CreatedAt:    c.CreatedAt,
		Deadline:     c.Deadline,
		ResolvedAt:   c.ResolvedAt,
	})
}

func (c *Claim) UnmarshalJSON(data []byte) error {
	var raw claimJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Status.valid() {
		return fmt.Errorf("claim %s: unknown status %q", raw.ID, raw.Status)
	}
	*c = Claim{
		Pool:         raw.Pool,
		Policy:       raw.Policy,
		Worker:       raw.Worker,
		ID:           raw.ID,
		Amount:       raw.Amount,
		Description:  raw.Description,
		EvidenceHash: raw.EvidenceHash,
		Votes:        consensus.Tally{For: raw.VotesFor, Against: raw.VotesAgainst},
		CreatedAt:    raw.CreatedAt,
		Deadline:     raw.Deadline,
		ResolvedAt:   raw.ResolvedAt,
		status:       raw.Status,
	}
	return nil
}
