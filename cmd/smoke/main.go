package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"gigshield.org/internal/auth"
	"gigshield.org/internal/client"
	"gigshield.org/internal/config"
	"gigshield.org/internal/domain"
	"gigshield.org/internal/ids"
	"gigshield.org/internal/obs"
)

type smoke struct {
	ctx  context.Context
	log  *zap.Logger
	base *client.Client
	sfx  string
}

func main() {
	baseURL := flag.String("base-url", envOr("GIGSHIELD_URL", "http://localhost:8080"), "API base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	logger, err := obs.NewLogger("info", "console", "gigshield-smoke")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	useSharedSecret(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	id := strings.ToLower(ids.New())
	s := &smoke{ctx: ctx, log: logger, base: client.New(*baseURL), sfx: id[len(id)-6:]}
	if err := s.run(); err != nil {
		logger.Fatal("smoke failed", zap.Error(err))
	}
	logger.Info("smoke passed")
}

// useSharedSecret installs the API's signing secret so admin tokens can be
// minted locally.
func useSharedSecret(logger *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.AuthSecret != "" {
		auth.SetSecret(cfg.AuthSecret)
	}
}

func (s *smoke) name(prefix string) string { return prefix + "-" + s.sfx }

func (s *smoke) run() error {
	ctx := s.ctx
	adminID, workerID, backerID := s.name("admin"), s.name("worker"), s.name("backer")
	poolID := s.name("rides")

	admin, err := s.base.Operator(adminID)
	if err != nil {
		return fmt.Errorf("login admin: %w", err)
	}
	worker, err := s.base.Login(ctx, workerID, "worker")
	if err != nil {
		return fmt.Errorf("login worker: %w", err)
	}
	backer, err := s.base.Login(ctx, backerID, "worker")
	if err != nil {
		return fmt.Errorf("login backer: %w", err)
	}

	if _, err := admin.CreatePool(ctx, client.PoolParams{ID: poolID, Category: "rideshare", PremiumRateBps: 500, MaxPayout: 5000}); err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	for who, amount := range map[string]uint64{workerID: 10_000, backerID: 10_000} {
		if _, err := admin.Fund(ctx, who, amount); err != nil {
			return fmt.Errorf("fund %s: %w", who, err)
		}
	}
	policy, err := worker.DepositPremium(ctx, adminID, poolID, 600)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	if policy.MaxClaimable() != 6000 {
		return fmt.Errorf("expected cap 6000, got %d", policy.MaxClaimable())
	}
	if _, err := backer.DepositPremium(ctx, adminID, poolID, 5000); err != nil {
		return fmt.Errorf("backer deposit: %w", err)
	}
	s.log.Info("pool capitalized", zap.String("pool", poolID))

	params := client.ClaimParams{ID: "c1", Amount: 4000, Description: "collision on shift", EvidenceHash: sha256.Sum256([]byte("dashcam"))}
	claim, err := worker.SubmitClaim(ctx, adminID, poolID, params)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if claim.Status() != domain.StatusPending {
		return fmt.Errorf("expected pending, got %s", claim.Status())
	}
	if kind := expectKind(worker.SubmitClaim(ctx, adminID, poolID, params)); kind != domain.KindConflict {
		return fmt.Errorf("resubmission: expected conflict, got %q", kind)
	}

	cheap, err := s.base.Login(ctx, s.name("cheap"), "validator")
	if err != nil {
		return err
	}
	if _, err := admin.Fund(ctx, s.name("cheap"), domain.MinStake); err != nil {
		return err
	}
	if kind := expectKind(cheap.RegisterValidator(ctx, domain.MinStake-1)); kind != domain.KindEconomic {
		return fmt.Errorf("low stake: expected economic error, got %q", kind)
	}
	if kind := expectKind(cheap.Validator(ctx, s.name("cheap"))); kind != domain.KindNotFound {
		return fmt.Errorf("low stake: validator should not exist, got %q", kind)
	}

	var res client.VoteResult
	for i, approve := range []bool{true, true, false} {
		vid := s.name(fmt.Sprintf("v%d", i+1))
		if _, err := admin.Fund(ctx, vid, domain.MinStake); err != nil {
			return err
		}
		v, err := s.base.Login(ctx, vid, "validator")
		if err != nil {
			return err
		}
		if _, err := v.RegisterValidator(ctx, domain.MinStake); err != nil {
			return fmt.Errorf("register %s: %w", vid, err)
		}
		if res, err = v.Vote(ctx, adminID, poolID, "c1", approve); err != nil {
			return fmt.Errorf("vote %s: %w", vid, err)
		}
	}
	if res.Claim.Status() != domain.StatusApproved || res.Claim.Votes.For != 2 || res.Claim.Votes.Against != 1 {
		return fmt.Errorf("expected approved 2-1, got %s %+v", res.Claim.Status(), res.Claim.Votes)
	}
	s.log.Info("claim approved", zap.Uint32("for", res.Claim.Votes.For), zap.Uint32("against", res.Claim.Votes.Against))

	paid, err := worker.Withdraw(ctx, adminID, poolID, "c1")
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	if paid.Status() != domain.StatusPaid {
		return fmt.Errorf("expected paid, got %s", paid.Status())
	}
	if kind := expectKind(worker.Withdraw(ctx, adminID, poolID, "c1")); kind != domain.KindState {
		return fmt.Errorf("second withdraw: expected state error, got %q", kind)
	}
	pool, err := worker.Pool(ctx, adminID, poolID)
	if err != nil {
		return err
	}
	if pool.TotalClaimsPaid != 4000 || pool.VaultBalance != 1600 {
		return fmt.Errorf("unexpected pool totals: paid=%d vault=%d", pool.TotalClaimsPaid, pool.VaultBalance)
	}
	s.log.Info("payout settled", zap.Uint64("total_claims_paid", pool.TotalClaimsPaid), zap.Uint64("vault", pool.VaultBalance))
	return nil
}

// expectKind discards a result and reports the API error kind.
func expectKind[T any](_ T, err error) domain.Kind {
	if err == nil {
		return ""
	}
	return client.KindOf(err)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
