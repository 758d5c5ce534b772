package domain

import (
	"time"

	"gigshield.org/internal/keys"
	"gigshield.org/internal/ledger"
)

// Policy is one worker's coverage in one pool. It is created implicitly by
// the worker's first premium deposit.
type Policy struct {
	Pool         string    `json:"pool"`
	Worker       string    `json:"worker"`
	PremiumsPaid uint64    `json:"premiums_paid"`
	GigsCovered  uint32    `json:"gigs_covered"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewPolicy returns the zero-valued active policy a first deposit upgrades.
func NewPolicy(poolKey, worker string, at time.Time) Policy {
	return Policy{Pool: poolKey, Worker: worker, Active: true, CreatedAt: Truncate(at)}
}

func (p Policy) Key() string { return keys.Policy(p.Pool, p.Worker) }

// AddPremium records one deposit covering one more gig.
func (p *Policy) AddPremium(amount uint64) {
	p.PremiumsPaid = ledger.AddSat(p.PremiumsPaid, amount)
	if p.GigsCovered < ^uint32(0) {
		p.GigsCovered++
	}
}

// MaxClaimable is the premium cap on any single claim.
func (p Policy) MaxClaimable() uint64 { return ledger.MulSat(p.PremiumsPaid, ClaimMultiplier) }
