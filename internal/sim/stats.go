package sim

import (
	"fmt"
	"sync"
	"time"

	"gigshield.org/internal/domain"
)

// Stats is a point-in-time view of a run.
type Stats struct {
	Premiums      int
	PremiumVolume uint64
	Claims        int
	Votes         int
	Approved      int
	Rejected      int
	Payouts       int
	PayoutVolume  uint64
	// Correct counts decided claims whose outcome matched ground truth.
	Correct  int
	Failures map[domain.Kind]int
}

// Accuracy is the share of decided claims resolved in line with ground truth.
func (s Stats) Accuracy() float64 {
	decided := s.Approved + s.Rejected
	if decided == 0 {
		return 0
	}
	return float64(s.Correct) / float64(decided)
}

// Summary renders a one-paragraph report of a run.
func (s Stats) Summary(window time.Duration) string {
	return fmt.Sprintf(
		"window %s: %d premiums (%s SOL), %d claims, %d votes, %d approved / %d rejected (%.0f%% matched ground truth), %d payouts (%s SOL), failures %v",
		window.Round(time.Second), s.Premiums, domain.FormatSOL(s.PremiumVolume), s.Claims, s.Votes,
		s.Approved, s.Rejected, 100*s.Accuracy(), s.Payouts, domain.FormatSOL(s.PayoutVolume), s.Failures,
	)
}

// Counter aggregates simulated activity. It is safe for concurrent use.
type Counter struct {
	mu sync.Mutex
	s  Stats
}

func (c *Counter) AddPremium(p Premium) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Premiums++
	c.s.PremiumVolume += p.Amount
}

func (c *Counter) AddClaim() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Claims++
}

func (c *Counter) AddVote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Votes++
}

// AddOutcome records a decided claim against its ground truth.
func (c *Counter) AddOutcome(plan ClaimPlan, status domain.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	approved := status == domain.StatusApproved || status == domain.StatusPaid
	if approved {
		c.s.Approved++
	} else {
		c.s.Rejected++
	}
	if approved == plan.Legit {
		c.s.Correct++
	}
}

func (c *Counter) AddPayout(amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Payouts++
	c.s.PayoutVolume += amount
}

func (c *Counter) AddFailure(kind domain.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.Failures == nil {
		c.s.Failures = make(map[domain.Kind]int)
	}
	c.s.Failures[kind]++
}

func (c *Counter) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.s
	out.Failures = make(map[domain.Kind]int, len(c.s.Failures))
	for k, v := range c.s.Failures {
		out.Failures[k] = v
	}
	return out
}
