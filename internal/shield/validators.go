package shield

import (
	"context"

	"go.uber.org/zap"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/events"
	"gigshield.org/internal/keys"
	"gigshield.org/internal/store"
)

// RegisterValidator locks stake from the authority's wallet into its
// validator vault and activates it. Deactivated validators cannot
// register again.
func (s *Service) RegisterValidator(ctx context.Context, authority string, stake uint64) (domain.Validator, error) {
	validator, err := domain.NewValidator(authority, stake, s.now())
	if err != nil {
		return domain.Validator{}, err
	}
	err = s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		if exists, err := tx.Exists(validator.Key()); err != nil {
			return err
		} else if exists {
			return domain.ErrValidatorExists
		}
		if _, err := tx.Transfer(keys.Wallet(authority), validator.Vault(), stake, "stake "+authority); err != nil {
			return custody(err, domain.ErrInsufficientWalletFunds)
		}
		if err := create(tx, validator.Key(), validator, domain.ErrValidatorExists); err != nil {
			return err
		}
		emit(events.ValidatorRegistered{Authority: authority, Stake: stake})
		return nil
	})
	if err != nil {
		return domain.Validator{}, err
	}
	s.log.Info("validator registered", zap.String("authority", authority), zap.Uint64("stake", stake))
	return validator, nil
}

// UnstakeValidator returns the full stake to the authority's wallet after
// the cooldown and deactivates the validator permanently.
func (s *Service) UnstakeValidator(ctx context.Context, authority string) (domain.Validator, error) {
	if err := domain.ValidateIdentity(authority); err != nil {
		return domain.Validator{}, err
	}
	now := s.now()
	var validator domain.Validator
	err := s.update(ctx, func(tx store.Tx, emit func(events.Payload)) error {
		if err := load(tx, keys.Validator(authority), &validator, domain.ErrValidatorNotFound); err != nil {
			return err
		}
		released, err := validator.Unstake(authority, now)
		if err != nil {
			return err
		}
		vault, err := tx.Balance(validator.Vault())
		if err != nil {
			return err
		}
		if vault < released {
			return domain.ErrInsufficientPoolFunds
		}
		if _, err := tx.Transfer(validator.Vault(), keys.Wallet(authority), released, "unstake "+authority); err != nil {
			return custody(err, domain.ErrInsufficientPoolFunds)
		}
		if err := tx.Put(validator.Key(), validator); err != nil {
			return err
		}
		emit(events.ValidatorUnstaked{Authority: authority, Released: released})
		return nil
	})
	if err != nil {
		return domain.Validator{}, err
	}
	s.log.Info("validator unstaked", zap.String("authority", authority))
	return validator, nil
}
