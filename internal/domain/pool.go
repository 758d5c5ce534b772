package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"gigshield.org/internal/keys"
	"gigshield.org/internal/ledger"
)

// Pool is a per-category insurance pool owned by its admin.
type Pool struct {
	Admin           string    `json:"admin"`
	ID              string    `json:"pool_id"`
	Category        Category  `json:"category"`
	PremiumRateBps  uint16    `json:"premium_rate_bps"`
	MaxPayout       uint64    `json:"max_payout"`
	TotalDeposits   uint64    `json:"total_deposits"`
	TotalClaimsPaid uint64    `json:"total_claims_paid"`
	ActivePolicies  uint32    `json:"active_policies"`
	Active          bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewPool validates the creation parameters and returns an active pool with
// zeroed counters.
func NewPool(admin, poolID string, category Category, rateBps uint16, maxPayout uint64, at time.Time) (Pool, error) {
	if err := ValidateIdentity(admin); err != nil {
		return Pool{}, err
	}
	if err := ValidateIdentifier(poolID, MaxPoolIDLen, ErrPoolIDTooLong); err != nil {
		return Pool{}, err
	}
	if !category.Valid() {
		return Pool{}, ErrInvalidCategory
	}
	if rateBps == 0 || rateBps > MaxPremiumRateBps {
		return Pool{}, ErrInvalidPremiumRate
	}
	if maxPayout == 0 {
		return Pool{}, ErrInvalidAmount
	}
	return Pool{
		Admin:          admin,
		ID:             poolID,
		Category:       category,
		PremiumRateBps: rateBps,
		MaxPayout:      maxPayout,
		Active:         true,
		CreatedAt:      Truncate(at),
	}, nil
}

func (p Pool) Key() string { return keys.Pool(p.Admin, p.ID) }

func (p Pool) Vault() string { return keys.PoolVault(p.Key()) }

// RecordDeposit adds amount to the lifetime deposit counter, saturating.
func (p *Pool) RecordDeposit(amount uint64) { p.TotalDeposits = ledger.AddSat(p.TotalDeposits, amount) }

// RecordPayout adds amount to the lifetime payout counter, saturating.
func (p *Pool) RecordPayout(amount uint64) {
	p.TotalClaimsPaid = ledger.AddSat(p.TotalClaimsPaid, amount)
}

// PolicyOpened counts a newly created policy.
func (p *Pool) PolicyOpened() {
	if p.ActivePolicies < ^uint32(0) {
		p.ActivePolicies++
	}
}

// QuotePremium is the premium owed on earnings at the pool's rate.
func (p Pool) QuotePremium(earnings uint64) uint64 { return QuotePremium(earnings, p.PremiumRateBps) }

// QuotePremium returns ceil(earnings * bps / 10000). Results that do not fit
// in a uint64 saturate.
func QuotePremium(earnings uint64, bps uint16) uint64 {
	q := lamportsDecimal(earnings).
		Mul(decimal.NewFromInt(int64(bps))).
		Div(decimal.NewFromInt(10_000)).
		Ceil()
	if q.GreaterThan(lamportsDecimal(^uint64(0))) {
		return ^uint64(0)
	}
	return q.BigInt().Uint64()
}

var lamportsPerSOL = decimal.New(1, 9)

// FormatSOL renders a lamport amount as a decimal SOL string.
func FormatSOL(lamports uint64) string {
	return lamportsDecimal(lamports).Div(lamportsPerSOL).StringFixed(9)
}

func lamportsDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
