package shield

import (
	"context"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/keys"
	"gigshield.org/internal/ledger"
	"gigshield.org/internal/store"
)

func (s *Service) Pool(ctx context.Context, ref PoolRef) (domain.Pool, error) {
	if err := ref.validate(); err != nil {
		return domain.Pool{}, err
	}
	var pool domain.Pool
	err := s.view(ctx, func(tx store.Tx) error {
		return load(tx, ref.Key(), &pool, domain.ErrPoolNotFound)
	})
	return pool, err
}

func (s *Service) Policy(ctx context.Context, ref PoolRef, worker string) (domain.Policy, error) {
	if err := ref.validate(); err != nil {
		return domain.Policy{}, err
	}
	if err := domain.ValidateIdentity(worker); err != nil {
		return domain.Policy{}, err
	}
	var policy domain.Policy
	err := s.view(ctx, func(tx store.Tx) error {
		return load(tx, keys.Policy(ref.Key(), worker), &policy, domain.ErrPolicyNotFound)
	})
	return policy, err
}

func (s *Service) Claim(ctx context.Context, ref PoolRef, claimID string) (domain.Claim, error) {
	if err := ref.validate(); err != nil {
		return domain.Claim{}, err
	}
	if err := domain.ValidateIdentifier(claimID, domain.MaxClaimIDLen, domain.ErrClaimIDTooLong); err != nil {
		return domain.Claim{}, err
	}
	var claim domain.Claim
	err := s.view(ctx, func(tx store.Tx) error {
		return load(tx, keys.Claim(ref.Key(), claimID), &claim, domain.ErrClaimNotFound)
	})
	return claim, err
}

// ListClaims returns every claim of a pool ordered by claim id.
func (s *Service) ListClaims(ctx context.Context, ref PoolRef) ([]domain.Claim, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	var out []domain.Claim
	err := s.view(ctx, func(tx store.Tx) error {
		if exists, err := tx.Exists(ref.Key()); err != nil {
			return err
		} else if !exists {
			return domain.ErrPoolNotFound
		}
		var err error
		out, err = readClaims(tx, keys.ClaimPrefix(ref.Key()))
		return err
	})
	return out, err
}

// ExpiredPending lists pending claims across all pools whose voting window
// has closed, in key order. limit <= 0 means no limit.
func (s *Service) ExpiredPending(ctx context.Context, limit int) ([]domain.Claim, error) {
	now := s.now()
	var out []domain.Claim
	err := s.view(ctx, func(tx store.Tx) error {
		all, err := readClaims(tx, keys.KindClaim+"/")
		if err != nil {
			return err
		}
		for _, c := range all {
			if c.Status() == domain.StatusPending && !c.VotingOpen(now) {
				out = append(out, c)
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func readClaims(tx store.Tx, prefix string) ([]domain.Claim, error) {
	return readAll[domain.Claim](tx, prefix)
}

// readAll decodes every record under prefix, in key order.
func readAll[T any](tx store.Tx, prefix string) ([]T, error) {
	recordKeys, err := tx.Keys(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recordKeys))
	for _, k := range recordKeys {
		var v T
		if err := tx.Get(k, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ListPools returns every pool, active or not, ordered by admin then id.
func (s *Service) ListPools(ctx context.Context) ([]domain.Pool, error) {
	var out []domain.Pool
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		out, err = readAll[domain.Pool](tx, keys.KindPool+"/")
		return err
	})
	return out, err
}

// ListValidators returns every registered validator, including those that
// have unstaked, ordered by authority.
func (s *Service) ListValidators(ctx context.Context) ([]domain.Validator, error) {
	var out []domain.Validator
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		out, err = readAll[domain.Validator](tx, keys.KindValidator+"/")
		return err
	})
	return out, err
}

func (s *Service) Vote(ctx context.Context, ref PoolRef, claimID, validator string) (domain.Vote, error) {
	if err := ref.validate(); err != nil {
		return domain.Vote{}, err
	}
	var vote domain.Vote
	err := s.view(ctx, func(tx store.Tx) error {
		return load(tx, keys.Vote(keys.Claim(ref.Key(), claimID), validator), &vote, domain.ErrVoteNotFound)
	})
	return vote, err
}

func (s *Service) Validator(ctx context.Context, authority string) (domain.Validator, error) {
	if err := domain.ValidateIdentity(authority); err != nil {
		return domain.Validator{}, err
	}
	var v domain.Validator
	err := s.view(ctx, func(tx store.Tx) error {
		return load(tx, keys.Validator(authority), &v, domain.ErrValidatorNotFound)
	})
	return v, err
}

// Balance reports a custody account balance; unknown accounts hold zero.
func (s *Service) Balance(ctx context.Context, account string) (uint64, error) {
	var bal uint64
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		bal, err = tx.Balance(account)
		return err
	})
	return bal, err
}

// Journal pages through custody movements in sequence order.
func (s *Service) Journal(ctx context.Context, limit int, afterSeq uint64) ([]ledger.Entry, uint64, error) {
	return s.store.Journal(ctx, limit, afterSeq)
}
