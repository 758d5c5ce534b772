package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"RideShare":  CategoryRideShare,
		"ride_share": CategoryRideShare,
		"DELIVERY":   CategoryDelivery,
		" other ":    CategoryOther,
	} {
		got, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseCategory("plumbing")
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.False(t, Category("RideShare").Valid())
}

func TestNewPoolValidation(t *testing.T) {
	_, err := NewPool("admin", "p", CategoryDelivery, 0, 1, t0)
	assert.ErrorIs(t, err, ErrInvalidPremiumRate)
	_, err = NewPool("admin", "p", CategoryDelivery, 1001, 1, t0)
	assert.ErrorIs(t, err, ErrInvalidPremiumRate)
	_, err = NewPool("admin", "p", CategoryDelivery, 1000, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = NewPool("admin", "012345678901234567890123456789012", CategoryDelivery, 1, 1, t0)
	assert.ErrorIs(t, err, ErrPoolIDTooLong)
	_, err = NewPool("admin", "a/b", CategoryDelivery, 1, 1, t0)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = NewPool("admin", "p", Category("x"), 1, 1, t0)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	p, err := NewPool("admin", "p", CategoryDelivery, 1000, 5000, t0)
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Zero(t, p.TotalDeposits)
	assert.Equal(t, "pool-vault/pool/admin/p", p.Vault())
}

func TestQuotePremiumRoundsUp(t *testing.T) {
	assert.Equal(t, uint64(150), QuotePremium(10_000, 150))
	assert.Equal(t, uint64(1), QuotePremium(1, 1))
	assert.Equal(t, uint64(0), QuotePremium(0, 1000))
	assert.Equal(t, uint64(16), QuotePremium(101, 1500))
	assert.Equal(t, uint64(math.MaxUint64/10)+1, QuotePremium(math.MaxUint64, 1000))
	assert.Equal(t, "1.500000000", FormatSOL(1_500_000_000))
}

func TestPolicyCapSaturates(t *testing.T) {
	p := NewPolicy("pool/a/p", "w", t0)
	p.AddPremium(600)
	assert.Equal(t, uint64(6000), p.MaxClaimable())
	assert.Equal(t, uint32(1), p.GigsCovered)
	p.AddPremium(math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64), p.PremiumsPaid)
	assert.Equal(t, uint64(math.MaxUint64), p.MaxClaimable())
}

func TestValidatorLifecycle(t *testing.T) {
	_, err := NewValidator("v", MinStake-1, t0)
	assert.ErrorIs(t, err, ErrInsufficientStake)

	v, err := NewValidator("v", MinStake, t0)
	require.NoError(t, err)
	assert.Equal(t, uint16(InitialReputation), v.Reputation)

	_, err = v.Unstake("v", t0.Add(24*time.Hour-time.Second))
	assert.ErrorIs(t, err, ErrUnstakeCooldownNotMet)
	_, err = v.Unstake("mallory", t0.Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrUnauthorized)

	released, err := v.Unstake("v", t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(MinStake), released)
	assert.Zero(t, v.Stake)
	assert.False(t, v.Active)
	_, err = v.Unstake("v", t0.Add(72*time.Hour))
	assert.ErrorIs(t, err, ErrValidatorInactive)
}

func TestReputationSaturates(t *testing.T) {
	v := Validator{Reputation: math.MaxUint16 - 2}
	v.Reward()
	assert.Equal(t, uint16(math.MaxUint16), v.Reputation)
	v = Validator{Reputation: 100}
	v.Reward()
	assert.Equal(t, uint16(105), v.Reputation)
}

func TestHashText(t *testing.T) {
	h, err := ParseHash("ab" + Hash{}.String()[2:])
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), h[0])
	_, err = ParseHash("abcd")
	assert.ErrorIs(t, err, ErrInvalidEvidence)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("vote: %w", ErrAlreadyVoted)))
	assert.Equal(t, KindEconomic, KindOf(ErrClaimExceedsPremiumCap))
	assert.Equal(t, KindTemporal, KindOf(ErrVotingExpired))
	assert.Equal(t, KindNotFound, KindOf(ErrPolicyNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("disk on fire")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
