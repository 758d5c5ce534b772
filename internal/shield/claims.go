package shield

import (
	"context"

	"go.uber.org/zap"

	"gigshield.org/internal/consensus"
	"gigshield.org/internal/domain"
	"gigshield.org/internal/events"
	"gigshield.org/internal/keys"
	"gigshield.org/internal/obs"
	"gigshield.org/internal/store"
)

// ClaimParams describe a worker's claim.
type ClaimParams struct {
	ID           string      `json:"claim_id"`
	Amount       uint64      `json:"amount"`
	EvidenceHash domain.Hash `json:"evidence_hash"`
	Description  string      `json:"description"`
}

// SubmitClaim opens a claim against the worker's policy in a pending state
// with a voting window of domain.VotingPeriod.
func (s *Service) SubmitClaim(ctx context.Context, worker string, ref PoolRef, p ClaimParams) (domain.Claim, error) {
	if err := ref.validate(); err != nil {
		return domain.Claim{}, err
	}
	if err := domain.ValidateIdentity(worker); err != nil {
		return domain.Claim{}, err
	}
	if err := domain.ValidateIdentifier(p.ID, domain.MaxClaimIDLen, domain.ErrClaimIDTooLong); err != nil {
		return domain.Claim{}, err
	}
	now := s.now()
	var claim domain.Claim
	err := s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		claimKey := keys.Claim(ref.Key(), p.ID)
		if exists, err := tx.Exists(claimKey); err != nil {
			return err
		} else if exists {
			return domain.ErrClaimExists
		}

		var pool domain.Pool
		if err := load(tx, ref.Key(), &pool, domain.ErrPoolNotFound); err != nil {
			return err
		}
		if !pool.Active {
			return domain.ErrPoolInactive
		}
		if p.Amount == 0 || p.Amount > pool.MaxPayout {
			return domain.ErrClaimExceedsMax
		}
		if len(p.Description) > domain.MaxDescriptionLen {
			return domain.ErrDescriptionTooLong
		}

		var policy domain.Policy
		if err := load(tx, keys.Policy(pool.Key(), worker), &policy, domain.ErrPolicyNotFound); err != nil {
			return err
		}
		if !policy.Active {
			return domain.ErrPolicyInactive
		}
		if policy.PremiumsPaid == 0 {
			return domain.ErrNoPremiumsPaid
		}
		if p.Amount > policy.MaxClaimable() {
			return domain.ErrClaimExceedsPremiumCap
		}

		var err error
		claim, err = domain.NewClaim(pool.Key(), worker, p.ID, p.Amount, p.Description, p.EvidenceHash, now)
		if err != nil {
			return err
		}
		if err := create(tx, claimKey, claim, domain.ErrClaimExists); err != nil {
			return err
		}
		emit(events.ClaimSubmitted{Pool: pool.Key(), Worker: worker, ClaimID: claim.ID, Amount: claim.Amount})
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}
	obs.ObserveClaimSubmitted()
	return claim, nil
}

// VoteResult reports a vote and what it did to the claim.
type VoteResult struct {
	Claim   domain.Claim      `json:"claim"`
	Vote    domain.Vote       `json:"vote"`
	Outcome consensus.Outcome `json:"-"`
	// Rewarded is set when this vote resolved the claim and earned the
	// validator reputation.
	Rewarded bool `json:"rewarded"`
}

// CastVote records one validator's vote. A validator votes at most once per
// claim. When the vote produces a live supermajority the claim resolves and
// only this validator's reputation rises.
func (s *Service) CastVote(ctx context.Context, authority string, ref PoolRef, claimID string, approve bool) (VoteResult, error) {
	if err := ref.validate(); err != nil {
		return VoteResult{}, err
	}
	if err := domain.ValidateIdentity(authority); err != nil {
		return VoteResult{}, err
	}
	if err := domain.ValidateIdentifier(claimID, domain.MaxClaimIDLen, domain.ErrClaimIDTooLong); err != nil {
		return VoteResult{}, err
	}
	now := s.now()
	var res VoteResult
	err := s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		res = VoteResult{}
		claimKey := keys.Claim(ref.Key(), claimID)
		if err := load(tx, claimKey, &res.Claim, domain.ErrClaimNotFound); err != nil {
			return err
		}
		res.Vote = domain.NewVote(res.Claim, authority, approve, now)
		if exists, err := tx.Exists(res.Vote.Key()); err != nil {
			return err
		} else if exists {
			return domain.ErrAlreadyVoted
		}

		outcome, err := res.Claim.RecordVote(approve, now)
		if err != nil {
			return err
		}
		var validator domain.Validator
		if err := load(tx, keys.Validator(authority), &validator, domain.ErrValidatorNotFound); err != nil {
			return err
		}
		if !validator.Active {
			return domain.ErrValidatorInactive
		}
		validator.CountVote()
		if outcome != consensus.Undecided {
			validator.Reward()
			res.Rewarded = true
		}
		res.Outcome = outcome

		if err := create(tx, res.Vote.Key(), res.Vote, domain.ErrAlreadyVoted); err != nil {
			return err
		}
		if err := tx.Put(claimKey, res.Claim); err != nil {
			return err
		}
		if err := tx.Put(validator.Key(), validator); err != nil {
			return err
		}
		emit(events.VoteCast{
			Pool:         ref.Key(),
			ClaimID:      claimID,
			Validator:    authority,
			Approve:      approve,
			VotesFor:     res.Claim.Votes.For,
			VotesAgainst: res.Claim.Votes.Against,
		})
		if outcome != consensus.Undecided {
			emit(events.ClaimResolved{Pool: ref.Key(), ClaimID: claimID, Status: string(res.Claim.Status())})
		}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}
	obs.ObserveVote(approve)
	if res.Outcome != consensus.Undecided {
		obs.ObserveResolution(res.Outcome.String(), "vote")
		s.log.Info("claim resolved",
			zap.String("claim", res.Claim.Key()),
			zap.String("status", string(res.Claim.Status())),
			zap.String("tipping_validator", authority))
	}
	return res, nil
}

// ResolveExpired finalizes a pending claim whose voting window has closed.
// Any caller may trigger it; the outcome depends only on the stored tally.
func (s *Service) ResolveExpired(ctx context.Context, ref PoolRef, claimID string) (domain.Claim, error) {
	if err := ref.validate(); err != nil {
		return domain.Claim{}, err
	}
	if err := domain.ValidateIdentifier(claimID, domain.MaxClaimIDLen, domain.ErrClaimIDTooLong); err != nil {
		return domain.Claim{}, err
	}
	now := s.now()
	var (
		claim   domain.Claim
		outcome consensus.Outcome
	)
	err := s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		claimKey := keys.Claim(ref.Key(), claimID)
		if err := load(tx, claimKey, &claim, domain.ErrClaimNotFound); err != nil {
			return err
		}
		var err error
		if outcome, err = claim.Expire(now); err != nil {
			return err
		}
		if err := tx.Put(claimKey, claim); err != nil {
			return err
		}
		emit(events.ClaimResolved{Pool: ref.Key(), ClaimID: claimID, Status: string(claim.Status()), Expired: true})
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}
	obs.ObserveResolution(outcome.String(), "expiry")
	s.log.Info("claim resolved at expiry", zap.String("claim", claim.Key()), zap.String("status", string(claim.Status())))
	return claim, nil
}

// WithdrawPayout pays an approved claim from the pool vault to the worker
// and marks it paid. A claim pays out at most once.
func (s *Service) WithdrawPayout(ctx context.Context, worker string, ref PoolRef, claimID string) (domain.Claim, error) {
	if err := ref.validate(); err != nil {
		return domain.Claim{}, err
	}
	if err := domain.ValidateIdentifier(claimID, domain.MaxClaimIDLen, domain.ErrClaimIDTooLong); err != nil {
		return domain.Claim{}, err
	}
	var claim domain.Claim
	err := s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		claimKey := keys.Claim(ref.Key(), claimID)
		if err := load(tx, claimKey, &claim, domain.ErrClaimNotFound); err != nil {
			return err
		}
		if claim.Status() != domain.StatusApproved {
			return domain.ErrClaimNotApproved
		}
		if claim.Worker != worker {
			return domain.ErrUnauthorized
		}
		var pool domain.Pool
		if err := load(tx, ref.Key(), &pool, domain.ErrPoolNotFound); err != nil {
			return err
		}
		vault, err := tx.Balance(pool.Vault())
		if err != nil {
			return err
		}
		if vault < claim.Amount {
			return domain.ErrInsufficientPoolFunds
		}
		if _, err := tx.Transfer(pool.Vault(), keys.Wallet(worker), claim.Amount, "payout "+claimKey); err != nil {
			return custody(err, domain.ErrInsufficientPoolFunds)
		}
		if err := claim.MarkPaid(); err != nil {
			return err
		}
		pool.RecordPayout(claim.Amount)
		if err := tx.Put(claimKey, claim); err != nil {
			return err
		}
		if err := tx.Put(pool.Key(), pool); err != nil {
			return err
		}
		emit(events.PayoutWithdrawn{Pool: pool.Key(), Worker: worker, ClaimID: claimID, Amount: claim.Amount})
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}
	obs.ObservePayout(claim.Amount)
	return claim, nil
}
