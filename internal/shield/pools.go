package shield

import (
	"context"

	"go.uber.org/zap"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/events"
	"gigshield.org/internal/keys"
	"gigshield.org/internal/obs"
	"gigshield.org/internal/store"
)

// PoolParams are the creation parameters of a pool.
type PoolParams struct {
	ID             string          `json:"pool_id"`
	Category       domain.Category `json:"category"`
	PremiumRateBps uint16          `json:"premium_rate_bps"`
	MaxPayout      uint64          `json:"max_payout"`
}

// CreatePool registers a new active pool owned by admin. The pool vault
// starts at a zero balance.
func (s *Service) CreatePool(ctx context.Context, admin string, p PoolParams) (domain.Pool, error) {
	pool, err := domain.NewPool(admin, p.ID, p.Category, p.PremiumRateBps, p.MaxPayout, s.now())
	if err != nil {
		return domain.Pool{}, err
	}
	err = s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		if err := create(tx, pool.Key(), pool, domain.ErrPoolExists); err != nil {
			return err
		}
		emit(events.PoolCreated{
			Pool:           pool.Key(),
			Admin:          pool.Admin,
			PoolID:         pool.ID,
			Category:       string(pool.Category),
			PremiumRateBps: pool.PremiumRateBps,
			MaxPayout:      pool.MaxPayout,
		})
		return nil
	})
	if err != nil {
		return domain.Pool{}, err
	}
	s.log.Info("pool created", zap.String("pool", pool.Key()), zap.String("category", string(pool.Category)))
	return pool, nil
}

// SetPoolActive lets the pool admin suspend or resume a pool.
func (s *Service) SetPoolActive(ctx context.Context, caller string, ref PoolRef, active bool) (domain.Pool, error) {
	if err := ref.validate(); err != nil {
		return domain.Pool{}, err
	}
	var pool domain.Pool
	err := s.update(ctx, func(tx store.Tx, _ func(events.Payload)) error {
		if err := load(tx, ref.Key(), &pool, domain.ErrPoolNotFound); err != nil {
			return err
		}
		if pool.Admin != caller {
			return domain.ErrUnauthorized
		}
		pool.Active = active
		return tx.Put(pool.Key(), pool)
	})
	return pool, err
}

// DepositPremium moves amount from the worker's wallet into the pool vault
// and credits it to the worker's policy, creating the policy on the first
// deposit.
func (s *Service) DepositPremium(ctx context.Context, worker string, ref PoolRef, amount uint64) (domain.Policy, error) {
	if err := ref.validate(); err != nil {
		return domain.Policy{}, err
	}
	if err := domain.ValidateIdentity(worker); err != nil {
		return domain.Policy{}, err
	}
	now := s.now()
	var policy domain.Policy
	err := s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		var pool domain.Pool
		if err := load(tx, ref.Key(), &pool, domain.ErrPoolNotFound); err != nil {
			return err
		}
		if !pool.Active {
			return domain.ErrPoolInactive
		}
		if amount == 0 {
			return domain.ErrInvalidAmount
		}

		policyKey := keys.Policy(pool.Key(), worker)
		fresh := false
		switch err := tx.Get(policyKey, &policy); {
		case err == nil:
			if !policy.Active {
				return domain.ErrPolicyInactive
			}
		case isNotFound(err):
			policy = domain.NewPolicy(pool.Key(), worker, now)
			fresh = true
		default:
			return err
		}

		if _, err := tx.Transfer(keys.Wallet(worker), pool.Vault(), amount, "premium "+policyKey); err != nil {
			return custody(err, domain.ErrInsufficientWalletFunds)
		}
		pool.RecordDeposit(amount)
		policy.AddPremium(amount)
		if fresh {
			pool.PolicyOpened()
			if err := tx.Create(policyKey, policy); err != nil {
				return err
			}
		} else if err := tx.Put(policyKey, policy); err != nil {
			return err
		}
		if err := tx.Put(pool.Key(), pool); err != nil {
			return err
		}
		emit(events.PremiumDeposited{Pool: pool.Key(), Worker: worker, Amount: amount, PremiumsPaid: policy.PremiumsPaid})
		return nil
	})
	if err != nil {
		return domain.Policy{}, err
	}
	obs.ObservePremium(amount)
	return policy, nil
}

// SetPolicyActive lets the pool admin suspend or restore a worker's policy.
// The pool's active policy count follows the change.
func (s *Service) SetPolicyActive(ctx context.Context, caller string, ref PoolRef, worker string, active bool) (domain.Policy, error) {
	if err := ref.validate(); err != nil {
		return domain.Policy{}, err
	}
	var policy domain.Policy
	err := s.update(ctx, func(tx store.Tx, _ func(events.Payload)) error {
		var pool domain.Pool
		if err := load(tx, ref.Key(), &pool, domain.ErrPoolNotFound); err != nil {
			return err
		}
		if pool.Admin != caller {
			return domain.ErrUnauthorized
		}
		if err := load(tx, keys.Policy(pool.Key(), worker), &policy, domain.ErrPolicyNotFound); err != nil {
			return err
		}
		if policy.Active == active {
			return nil
		}
		policy.Active = active
		if active {
			pool.PolicyOpened()
		} else if pool.ActivePolicies > 0 {
			pool.ActivePolicies--
		}
		if err := tx.Put(policy.Key(), policy); err != nil {
			return err
		}
		return tx.Put(pool.Key(), pool)
	})
	return policy, err
}

// QuotePremium prices gig earnings at the pool's premium rate.
func (s *Service) QuotePremium(ctx context.Context, ref PoolRef, earnings uint64) (uint64, error) {
	pool, err := s.Pool(ctx, ref)
	if err != nil {
		return 0, err
	}
	return pool.QuotePremium(earnings), nil
}

// Fund credits an identity's wallet from outside the system.
func (s *Service) Fund(ctx context.Context, identity string, amount uint64) (uint64, error) {
	if err := domain.ValidateIdentity(identity); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance uint64
	err := s.update(ctx, func(tx store.Tx, _ func(events.Payload)) error {
		if _, err := tx.Credit(keys.Wallet(identity), amount, "fund"); err != nil {
			return custody(err, domain.ErrInsufficientWalletFunds)
		}
		var err error
		balance, err = tx.Balance(keys.Wallet(identity))
		return err
	})
	return balance, err
}
