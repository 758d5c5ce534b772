// Package shield implements the insurance core: pools, policies, validators,
// the claim lifecycle and the consensus that drives it. Every operation is
// one atomic unit of work against a store.Store; events are published only
// after the unit commits.
package shield

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"gigshield.org/internal/domain"
	"gigshield.org/internal/events"
	"gigshield.org/internal/keys"
	"gigshield.org/internal/ledger"
	"gigshield.org/internal/store"
)

// Service is safe for concurrent use; serialization is the store's job.
type Service struct {
	store store.Store
	clock clockwork.Clock
	pub   events.Publisher
	log   *zap.Logger
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.pub = p } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		clock: clockwork.NewRealClock(),
		pub:   events.Discard,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PoolRef addresses a pool by its admin and id.
type PoolRef struct {
	Admin string `json:"admin"`
	ID    string `json:"pool_id"`
}

func (r PoolRef) Key() string { return keys.Pool(r.Admin, r.ID) }

// PoolRefOf parses a stored pool key such as domain.Claim.Pool.
func PoolRefOf(poolKey string) (PoolRef, error) {
	admin, id, ok := keys.SplitPool(poolKey)
	if !ok {
		return PoolRef{}, fmt.Errorf("%w: pool key %q", domain.ErrInvalidIdentifier, poolKey)
	}
	return PoolRef{Admin: admin, ID: id}, nil
}

func (r PoolRef) validate() error {
	if err := domain.ValidateIdentity(r.Admin); err != nil {
		return err
	}
	return domain.ValidateIdentifier(r.ID, domain.MaxPoolIDLen, domain.ErrPoolIDTooLong)
}

func (s *Service) now() time.Time { return domain.Truncate(s.clock.Now()) }

// update runs fn in one unit of work and publishes what it emitted once the
// unit has committed.
func (s *Service) update(ctx context.Context, fn func(tx store.Tx, emit func(events.Payload)) error) error {
	var pending []events.Payload
	err := s.store.Update(ctx, func(tx store.Tx) error {
		pending = pending[:0]
		return fn(tx, func(p events.Payload) { pending = append(pending, p) })
	})
	if err != nil {
		return err
	}
	at := s.clock.Now()
	for _, p := range pending {
		evt := events.New(at, p)
		if err := s.pub.Publish(ctx, evt); err != nil {
			s.log.Warn("event publish failed", zap.String("type", evt.Type), zap.String("event_id", evt.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.store.View(ctx, fn)
}

// load reads key into dst, mapping a missing record to notFound.
func load(tx store.Tx, key string, dst any, notFound error) error {
	err := tx.Get(key, dst)
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}

// create stores v at key, mapping an occupied key to exists.
func create(tx store.Tx, key string, v any, exists error) error {
	err := tx.Create(key, v)
	if errors.Is(err, store.ErrAlreadyExists) {
		return exists
	}
	return err
}

// custody maps ledger failures onto domain errors; insufficient names the
// error to use when the debited account is short.
func custody(err error, insufficient error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return insufficient
	case errors.Is(err, ledger.ErrOverflow):
		return domain.ErrAmountOverflow
	case errors.Is(err, ledger.ErrInvalidAmount):
		return domain.ErrInvalidAmount
	default:
		return fmt.Errorf("custody: %w", err)
	}
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
