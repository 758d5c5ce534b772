package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/zap"

	"gigshield.org/internal/auth"
	"gigshield.org/internal/client"
	"gigshield.org/internal/config"
	"gigshield.org/internal/domain"
	"gigshield.org/internal/obs"
	"gigshield.org/internal/sim"
)

// sessions caches one authenticated client per identity.
type sessions struct {
	base *client.Client
	mu   sync.Mutex
	byID map[string]*client.Client
}

func (s *sessions) get(ctx context.Context, identity, role string) (*client.Client, error) {
	s.mu.Lock()
	c, ok := s.byID[identity]
	s.mu.Unlock()
	if ok {
		return c, nil
	}
	var err error
	if role == auth.RoleAdmin {
		c, err = s.base.Operator(identity)
	} else {
		c, err = s.base.Login(ctx, identity, role)
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.byID[identity] = c
	s.mu.Unlock()
	return c, nil
}

type runner struct {
	log      *zap.Logger
	gen      *sim.Generator
	sessions *sessions
	counter  *sim.Counter
	admin    string
	claimPct float64
}

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		workers  = flag.Int("workers", 4, "Concurrent worker count")
		duration = flag.Duration("duration", 2*time.Minute, "Duration of the simulation")
		seed     = flag.Int64("seed", 0, "Generator seed (0 = time based)")
		claimPct = flag.Float64("claim-rate", 0.3, "Probability a deposit is followed by a claim")
	)
	flag.Parse()

	logger, err := obs.NewLogger("info", "console", "gigshield-loadgen")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.AuthSecret != "" {
		auth.SetSecret(cfg.AuthSecret)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	gen := sim.NewGenerator(*seed)
	r := &runner{
		log:      logger,
		gen:      gen,
		sessions: &sessions{base: client.New(*baseURL), byID: map[string]*client.Client{}},
		counter:  &sim.Counter{},
		admin:    gen.Scenario().Admin,
		claimPct: *claimPct,
	}

	logger.Info("launching load generator",
		zap.String("base_url", *baseURL),
		zap.Int("workers", *workers),
		zap.Duration("duration", *duration))

	if err := r.setup(ctx); err != nil {
		logger.Fatal("setup", zap.Error(err))
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id*9973)))
			for ctx.Err() == nil {
				r.step(ctx, rnd)
				time.Sleep(time.Duration(50+rnd.Intn(120)) * time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	logger.Info("run complete", zap.String("summary", r.counter.Snapshot().Summary(time.Since(start))))
}

// setup creates the scenario's pools and registers its validators. Records
// left by a previous run are reused.
func (r *runner) setup(ctx context.Context) error {
	s := r.gen.Scenario()
	admin, err := r.sessions.get(ctx, s.Admin, auth.RoleAdmin)
	if err != nil {
		return err
	}
	for _, p := range s.Pools {
		_, err := admin.CreatePool(ctx, client.PoolParams{
			ID: p.ID, Category: string(p.Category), PremiumRateBps: p.PremiumRateBps, MaxPayout: p.MaxPayout,
		})
		if err != nil && client.KindOf(err) != domain.KindConflict {
			return fmt.Errorf("create pool %s: %w", p.ID, err)
		}
	}
	for _, w := range s.Workers {
		if _, err := admin.Fund(ctx, w.ID, w.Funding); err != nil {
			return fmt.Errorf("fund %s: %w", w.ID, err)
		}
	}
	for _, v := range s.Validators {
		if _, err := admin.Fund(ctx, v.ID, domain.MinStake); err != nil {
			return fmt.Errorf("fund %s: %w", v.ID, err)
		}
		vc, err := r.sessions.get(ctx, v.ID, "validator")
		if err != nil {
			return err
		}
		if _, err := vc.RegisterValidator(ctx, domain.MinStake); err != nil && client.KindOf(err) != domain.KindConflict {
			return fmt.Errorf("register %s: %w", v.ID, err)
		}
	}
	return nil
}

func (r *runner) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	kind := client.KindOf(err)
	if kind == "" {
		kind = domain.KindInternal
	}
	r.counter.AddFailure(kind)
	if kind == domain.KindInternal {
		r.log.Warn(op+" failed", zap.Error(err))
	}
}

// step deposits one premium and sometimes follows it with a claim that is
// voted on until decided and withdrawn when approved.
func (r *runner) step(ctx context.Context, rnd *rand.Rand) {
	p := r.gen.NextPremium()
	worker, err := r.sessions.get(ctx, p.Worker, "worker")
	if err != nil {
		r.fail(ctx, "login", err)
		return
	}
	policy, err := worker.DepositPremium(ctx, r.admin, p.Pool, p.Amount)
	if err != nil {
		r.fail(ctx, "deposit", err)
		return
	}
	r.counter.AddPremium(p)

	if rnd.Float64() >= r.claimPct {
		return
	}
	plan, ok := r.gen.NextClaim(p.Worker, p.Pool, policy.PremiumsPaid)
	if !ok {
		return
	}
	claim, err := worker.SubmitClaim(ctx, r.admin, p.Pool, client.ClaimParams{
		ID: plan.ID, Amount: plan.Amount, Description: plan.Description, EvidenceHash: plan.EvidenceHash,
	})
	if err != nil {
		r.fail(ctx, "submit", err)
		return
	}
	r.counter.AddClaim()

	for _, b := range r.gen.Ballots(plan) {
		if claim.Status() != domain.StatusPending {
			break
		}
		v, err := r.sessions.get(ctx, b.Validator, "validator")
		if err != nil {
			r.fail(ctx, "login", err)
			return
		}
		res, err := v.Vote(ctx, r.admin, p.Pool, plan.ID, b.Approve)
		if err != nil {
			r.fail(ctx, "vote", err)
			return
		}
		r.counter.AddVote()
		claim = res.Claim
	}
	if claim.Status() == domain.StatusPending {
		return
	}
	r.counter.AddOutcome(plan, claim.Status())

	if claim.Status() == domain.StatusApproved {
		if _, err := worker.Withdraw(ctx, r.admin, p.Pool, plan.ID); err != nil {
			r.fail(ctx, "withdraw", err)
			return
		}
		r.counter.AddPayout(plan.Amount)
	}
}
