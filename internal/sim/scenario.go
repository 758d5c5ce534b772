// Package sim generates synthetic gig-economy traffic: pools per category,
// workers paying premiums, claims of varying honesty and validator ballots.
package sim

import (
	"crypto/sha256"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gigshield.org/internal/domain"
)

type Pool struct {
	ID             string
	Category       domain.Category
	PremiumRateBps uint16
	MaxPayout      uint64
}

type Worker struct {
	ID   string
	Pool string
	// Earnings is the typical gig income the premium is quoted on.
	Earnings uint64
	Funding  uint64
}

type Validator struct {
	ID string
	// Honesty is the probability of voting on the merits of a claim.
	Honesty float64
}

type Scenario struct {
	Name       string
	Admin      string
	Pools      []Pool
	Workers    []Worker
	Validators []Validator
	Incidents  map[domain.Category][]string
}

// GigEconomyScenario is one pool per category, three workers per pool and
// five validators, one of them unreliable.
func GigEconomyScenario() Scenario {
	s := Scenario{
		Name:  "GigEconomyWeek",
		Admin: "sim-admin",
		Incidents: map[domain.Category][]string{
			domain.CategoryRideShare:    {"rear-ended at traffic light", "passenger damaged seat", "windshield cracked on highway"},
			domain.CategoryDelivery:     {"e-bike stolen outside restaurant", "slipped on wet stairs", "phone broken during drop-off"},
			domain.CategoryFreelance:    {"laptop failure before deadline", "client chargeback", "hand injury, unable to type"},
			domain.CategoryConstruction: {"fell from ladder", "power tool malfunction", "site closure mid-contract"},
			domain.CategoryHealthcare:   {"needle-stick exposure", "back strain lifting patient", "shift cancelled after illness"},
			domain.CategoryOther:        {"equipment theft", "minor workplace injury", "vehicle breakdown"},
		},
		Validators: []Validator{
			{ID: "sim-val-1", Honesty: 0.95},
			{ID: "sim-val-2", Honesty: 0.9},
			{ID: "sim-val-3", Honesty: 0.9},
			{ID: "sim-val-4", Honesty: 0.85},
			{ID: "sim-val-5", Honesty: 0.4},
		},
	}
	rates := []uint16{500, 350, 200, 800, 300, 400}
	for i, c := range domain.Categories {
		p := Pool{ID: "sim-" + string(c), Category: c, PremiumRateBps: rates[i], MaxPayout: 2 * domain.MinStake}
		s.Pools = append(s.Pools, p)
		for j := 1; j <= 3; j++ {
			s.Workers = append(s.Workers, Worker{
				ID:       fmt.Sprintf("sim-%s-w%d", c, j),
				Pool:     p.ID,
				Earnings: uint64(j) * 500_000_000,
				Funding:  5 * domain.MinStake,
			})
		}
	}
	return s
}

type Premium struct {
	Worker   string
	Pool     string
	Earnings uint64
	Amount   uint64
}

type ClaimPlan struct {
	Worker       string
	Pool         string
	ID           string
	Amount       uint64
	Description  string
	EvidenceHash domain.Hash
	// Legit is the ground truth honest validators vote on.
	Legit bool
}

type Ballot struct {
	Validator string
	Approve   bool
}

// Generator is safe for concurrent use.
type Generator struct {
	scenario Scenario
	pools    map[string]Pool

	mu  sync.Mutex
	rnd *rand.Rand
	seq uint64
}

func NewGenerator(seed int64) *Generator {
	return NewGeneratorFor(GigEconomyScenario(), seed)
}

func NewGeneratorFor(s Scenario, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	pools := make(map[string]Pool, len(s.Pools))
	for _, p := range s.Pools {
		pools[p.ID] = p
	}
	return &Generator{scenario: s, pools: pools, rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Scenario() Scenario { return g.scenario }

// Pool looks up a scenario pool by id.
func (g *Generator) Pool(id string) (Pool, bool) {
	p, ok := g.pools[id]
	return p, ok
}

// NextPremium picks a worker and quotes a premium on a gig worth between
// half and one and a half times their typical earnings.
func (g *Generator) NextPremium() Premium {
	g.mu.Lock()
	defer g.mu.Unlock()
	w := g.scenario.Workers[g.rnd.Intn(len(g.scenario.Workers))]
	earnings := w.Earnings/2 + uint64(g.rnd.Int63n(int64(w.Earnings)+1))
	pool := g.pools[w.Pool]
	return Premium{
		Worker:   w.ID,
		Pool:     w.Pool,
		Earnings: earnings,
		Amount:   domain.QuotePremium(earnings, pool.PremiumRateBps),
	}
}

// NextClaim drafts a claim for worker within both the pool maximum and the
// premium cap implied by premiumsPaid. It reports false when nothing is
// claimable yet.
func (g *Generator) NextClaim(worker, poolID string, premiumsPaid uint64) (ClaimPlan, bool) {
	pool, ok := g.pools[poolID]
	if !ok || premiumsPaid == 0 {
		return ClaimPlan{}, false
	}
	limit := pool.MaxPayout
	if capped := premiumsPaid * domain.ClaimMultiplier; capped/domain.ClaimMultiplier == premiumsPaid && capped < limit {
		limit = capped
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	incidents := g.scenario.Incidents[pool.Category]
	desc := "unspecified incident"
	if len(incidents) > 0 {
		desc = incidents[g.rnd.Intn(len(incidents))]
	}
	id := fmt.Sprintf("c%x-%d", g.rnd.Uint32(), g.seq)
	plan := ClaimPlan{
		Worker:       worker,
		Pool:         poolID,
		ID:           id,
		Amount:       1 + uint64(g.rnd.Int63n(int64(limit))),
		Description:  desc,
		EvidenceHash: sha256.Sum256([]byte(worker + "/" + id + "/" + desc)),
		Legit:        g.rnd.Float64() < 0.7,
	}
	return plan, true
}

// Ballots returns one vote per validator in random order. Honest votes
// follow the claim's ground truth; the rest invert it.
func (g *Generator) Ballots(c ClaimPlan) []Ballot {
	g.mu.Lock()
	defer g.mu.Unlock()
	vals := g.scenario.Validators
	out := make([]Ballot, 0, len(vals))
	for _, i := range g.rnd.Perm(len(vals)) {
		v := vals[i]
		honest := g.rnd.Float64() < v.Honesty
		out = append(out, Ballot{Validator: v.ID, Approve: honest == c.Legit})
	}
	return out
}
