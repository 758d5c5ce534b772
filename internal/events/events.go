// Package events carries the notifications an operation emits after it
// commits. Consumers are indexers and dashboards; nothing in the core reads
// them back.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"gigshield.org/internal/ids"
)

// Event types.
const (
	TypePoolCreated         = "pool.created"
	TypePremiumDeposited    = "premium.deposited"
	TypeClaimSubmitted      = "claim.submitted"
	TypeVoteCast            = "vote.cast"
	TypeClaimResolved       = "claim.resolved"
	TypePayoutWithdrawn     = "payout.withdrawn"
	TypeValidatorRegistered = "validator.registered"
	TypeValidatorUnstaked   = "validator.unstaked"
)

// Event is one notification. Data holds one of the payload structs below.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// New stamps a payload with an id and type.
func New(at time.Time, payload Payload) Event {
	return Event{ID: ids.NewAt(at), Type: payload.EventType(), At: at.UTC(), Data: payload}
}

// Payload is implemented by every event body.
type Payload interface {
	EventType() string
}

type PoolCreated struct {
	Pool           string `json:"pool"`
	Admin          string `json:"admin"`
	PoolID         string `json:"pool_id"`
	Category       string `json:"category"`
	PremiumRateBps uint16 `json:"premium_rate_bps"`
	MaxPayout      uint64 `json:"max_payout"`
}

type PremiumDeposited struct {
	Pool         string `json:"pool"`
	Worker       string `json:"worker"`
	Amount       uint64 `json:"amount"`
	PremiumsPaid uint64 `json:"total_premiums"`
}

type ClaimSubmitted struct {
	Pool    string `json:"pool"`
	Worker  string `json:"worker"`
	ClaimID string `json:"claim_id"`
	Amount  uint64 `json:"amount"`
}

type VoteCast struct {
	Pool         string `json:"pool"`
	ClaimID      string `json:"claim_id"`
	Validator    string `json:"validator"`
	Approve      bool   `json:"approve"`
	VotesFor     uint32 `json:"votes_for"`
	VotesAgainst uint32 `json:"votes_against"`
}

type ClaimResolved struct {
	Pool    string `json:"pool"`
	ClaimID string `json:"claim_id"`
	Status  string `json:"status"`
	Expired bool   `json:"expired"`
}

type PayoutWithdrawn struct {
	Pool    string `json:"pool"`
	Worker  string `json:"worker"`
	ClaimID string `json:"claim_id"`
	Amount  uint64 `json:"amount"`
}

type ValidatorRegistered struct {
	Authority string `json:"authority"`
	Stake     uint64 `json:"stake"`
}

type ValidatorUnstaked struct {
	Authority string `json:"authority"`
	Released  uint64 `json:"released"`
}

func (PoolCreated) EventType() string         { return TypePoolCreated }
func (PremiumDeposited) EventType() string    { return TypePremiumDeposited }
func (ClaimSubmitted) EventType() string      { return TypeClaimSubmitted }
func (VoteCast) EventType() string            { return TypeVoteCast }
func (ClaimResolved) EventType() string       { return TypeClaimResolved }
func (PayoutWithdrawn) EventType() string     { return TypePayoutWithdrawn }
func (ValidatorRegistered) EventType() string { return TypeValidatorRegistered }
func (ValidatorUnstaked) EventType() string   { return TypeValidatorUnstaked }

// Publisher delivers committed events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, evt Event) error

func (f PublisherFunc) Publish(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// Multi publishes to every target, continuing past failures and returning
// them joined.
func Multi(targets ...Publisher) Publisher {
	return PublisherFunc(func(ctx context.Context, evt Event) error {
		var errs []error
		for _, t := range targets {
			if t == nil {
				continue
			}
			if err := t.Publish(ctx, evt); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists recorded event types in order.
func (r *Recorder) Types() []string {
	evts := r.Events()
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}
