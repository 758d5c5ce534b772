package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestTransferSuccessAndBalance(t *testing.T) {
	b := NewBook()
	_, err := b.Credit("wallet/a", 1000, "fund", at)
	require.NoError(t, err)

	e, err := b.Transfer("wallet/a", "pool-vault/p", 600, "premium", at)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Sequence)
	assert.Equal(t, uint64(400), b.Balance("wallet/a"))
	assert.Equal(t, uint64(600), b.Balance("pool-vault/p"))
}

func TestInsufficientFunds(t *testing.T) {
	b := NewBook()
	_, err := b.Credit("wallet/a", 100, "", at)
	require.NoError(t, err)

	_, err = b.Transfer("wallet/a", "wallet/b", 200, "", at)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(100), b.Balance("wallet/a"))
	assert.Zero(t, b.Balance("wallet/b"))
}

func TestTransferRejectsBadInput(t *testing.T) {
	b := NewBook()
	_, err := b.Transfer("wallet/a", "wallet/a", 1, "", at)
	require.ErrorIs(t, err, ErrInvalidAccount)
	_, err = b.Transfer("wallet/a", "wallet/b", 0, "", at)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.Credit("", 1, "", at)
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestCloneIsolation(t *testing.T) {
	b := NewBook()
	_, err := b.Credit("wallet/a", 500, "", at)
	require.NoError(t, err)

	c := b.Clone()
	_, err = c.Transfer("wallet/a", "wallet/b", 200, "", at)
	require.NoError(t, err)

	assert.Equal(t, uint64(500), b.Balance("wallet/a"))
	entries, _ := b.Entries(10, 0)
	assert.Len(t, entries, 1)

	entries, last := c.Entries(10, 0)
	assert.Len(t, entries, 2)
	assert.Equal(t, uint64(2), last)
}

func TestEntriesPaging(t *testing.T) {
	b := NewBook()
	for i := 0; i < 5; i++ {
		_, err := b.Credit("wallet/a", 10, "", at)
		require.NoError(t, err)
	}
	page, last := b.Entries(2, 0)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), last)

	page, last = b.Entries(2, last)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(3), page[0].Sequence)
	assert.Equal(t, uint64(4), last)
}

func TestSaturatingMath(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), AddSat(math.MaxUint64, 1))
	assert.Equal(t, uint64(math.MaxUint64), MulSat(math.MaxUint64/2, 10))
	assert.Equal(t, uint64(6000), MulSat(600, 10))
	assert.Zero(t, MulSat(0, 10))

	_, err := AddBalance(MaxBalance, 1)
	require.ErrorIs(t, err, ErrOverflow)
	sum, err := AddBalance(MaxBalance-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(MaxBalance), sum)
}

func TestBalancesCappedAtMaxBalance(t *testing.T) {
	b := NewBook()
	_, err := b.Credit("wallet/a", MaxBalance+1, "fund", at)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = b.Credit("wallet/a", MaxBalance, "fund", at)
	require.NoError(t, err)
	_, err = b.Credit("wallet/a", 1, "fund", at)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = b.Credit("wallet/b", 10, "fund", at)
	require.NoError(t, err)
	_, err = b.Transfer("wallet/b", "wallet/a", 10, "gift", at)
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, uint64(10), b.Balance("wallet/b"), "failed transfer leaves the source intact")
	assert.Equal(t, uint64(MaxBalance), b.Balance("wallet/a"))
}
