// Package keeper periodically finalizes claims whose voting window closed
// without a decision. It is an ordinary caller of the service; nothing in
// the core depends on it running.
package keeper

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/shield"
)

const DefaultBatch = 100

// Resolver is the slice of shield.Service the keeper drives.
type Resolver interface {
	ExpiredPending(ctx context.Context, limit int) ([]domain.Claim, error)
	ResolveExpired(ctx context.Context, ref shield.PoolRef, claimID string) (domain.Claim, error)
}

type Keeper struct {
	svc      Resolver
	interval time.Duration
	batch    int
	clock    clockwork.Clock
	log      *zap.Logger
}

type Option func(*Keeper)

func WithClock(c clockwork.Clock) Option { return func(k *Keeper) { k.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(k *Keeper) { k.log = l } }

func WithBatch(n int) Option {
	return func(k *Keeper) {
		if n > 0 {
			k.batch = n
		}
	}
}

// New returns a keeper polling every interval. A non-positive interval
// disables Run.
func New(svc Resolver, interval time.Duration, opts ...Option) *Keeper {
	k := &Keeper{
		svc:      svc,
		interval: interval,
		batch:    DefaultBatch,
		clock:    clockwork.NewRealClock(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Enabled reports whether Run will poll.
func (k *Keeper) Enabled() bool { return k.interval > 0 }

// Run polls until ctx is done.
func (k *Keeper) Run(ctx context.Context) {
	if !k.Enabled() {
		k.log.Info("keeper disabled")
		return
	}
	k.log.Info("keeper started", zap.Duration("interval", k.interval))
	ticker := k.clock.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			k.log.Info("keeper stopped")
			return
		case <-ticker.Chan():
			if _, err := k.RunOnce(ctx); err != nil && ctx.Err() == nil {
				k.log.Warn("keeper pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce resolves one batch of expired claims and returns how many it
// finalized. Claims finalized concurrently by another caller are skipped.
func (k *Keeper) RunOnce(ctx context.Context) (int, error) {
	claims, err := k.svc.ExpiredPending(ctx, k.batch)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, c := range claims {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		ref, err := shield.PoolRefOf(c.Pool)
		if err != nil {
			k.log.Warn("skipping claim with malformed pool key", zap.String("pool", c.Pool), zap.Error(err))
			continue
		}
		out, err := k.svc.ResolveExpired(ctx, ref, c.ID)
		switch {
		case err == nil:
			resolved++
			k.log.Debug("claim finalized", zap.String("claim", out.Key()), zap.String("status", string(out.Status())))
		case errors.Is(err, domain.ErrClaimNotPending):
			k.log.Debug("claim already resolved", zap.String("claim", c.Key()))
		default:
			k.log.Warn("resolve expired claim", zap.String("claim", c.Key()), zap.Error(err))
		}
	}
	return resolved, nil
}
