package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigshield.org/internal/ledger"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCreateIsCreateIfAbsent(t *testing.T) {
	s := NewMemory(nil)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.Create("pool/a/x", record{Name: "x"})
	}))
	err := s.Update(ctx, func(tx Tx) error {
		return tx.Create("pool/a/x", record{Name: "y"})
	})
	require.ErrorIs(t, err, ErrAlreadyExists)

	var got record
	require.NoError(t, s.View(ctx, func(tx Tx) error { return tx.Get("pool/a/x", &got) }))
	assert.Equal(t, "x", got.Name)
}

func TestFailedUpdateLeavesNoTrace(t *testing.T) {
	s := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		if _, err := tx.Credit("wallet/a", 100, "fund"); err != nil {
			return err
		}
		return tx.Create("policy/p/a", record{Count: 1})
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx Tx) error {
		if _, err := tx.Transfer("wallet/a", "pool-vault/p", 60, "premium"); err != nil {
			return err
		}
		if err := tx.Put("policy/p/a", record{Count: 2}); err != nil {
			return err
		}
		if err := tx.Create("claim/p/c1", record{Name: "c1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		bal, err := tx.Balance("wallet/a")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bal)

		var p record
		require.NoError(t, tx.Get("policy/p/a", &p))
		assert.Equal(t, 1, p.Count)

		ok, err := tx.Exists("claim/p/c1")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	entries, _, err := s.Journal(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadYourWritesInsideTx(t *testing.T) {
	s := NewMemory(nil)
	require.NoError(t, s.Update(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.Create("claim/p/1", record{Name: "one"}))
		require.NoError(t, tx.Put("claim/p/1", record{Name: "uno"}))
		var r record
		require.NoError(t, tx.Get("claim/p/1", &r))
		assert.Equal(t, "uno", r.Name)
		keys, err := tx.Keys("claim/p/")
		require.NoError(t, err)
		assert.Equal(t, []string{"claim/p/1"}, keys)
		return nil
	}))
}

func TestPutRequiresExistingRecord(t *testing.T) {
	s := NewMemory(nil)
	err := s.Update(context.Background(), func(tx Tx) error {
		return tx.Put("validator/v", record{})
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestViewIsReadOnly(t *testing.T) {
	s := NewMemory(nil)
	err := s.View(context.Background(), func(tx Tx) error {
		return tx.Create("pool/a/b", record{})
	})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestRecordSizeReservation(t *testing.T) {
	s := NewMemory(nil)
	err := s.Update(context.Background(), func(tx Tx) error {
		return tx.Create("claim/p/big", record{Name: strings.Repeat("x", MaxRecordSize)})
	})
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestKeysSorted(t *testing.T) {
	s := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		for _, k := range []string{"claim/p/b", "claim/p/a", "claim/q/a"} {
			if err := tx.Create(k, record{}); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, s.View(ctx, func(tx Tx) error {
		keys, err := tx.Keys("claim/p/")
		require.NoError(t, err)
		assert.Equal(t, []string{"claim/p/a", "claim/p/b"}, keys)
		return nil
	}))
}

func TestConcurrentTransfersConserveValue(t *testing.T) {
	s := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		_, err := tx.Credit("wallet/a", 10000, "")
		return err
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, func(tx Tx) error {
				_, err := tx.Transfer("wallet/a", "wallet/b", 300, "")
				return err
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		a, _ := tx.Balance("wallet/a")
		b, _ := tx.Balance("wallet/b")
		assert.Equal(t, uint64(10000), a+b)
		assert.Equal(t, uint64(33*300), b)
		return nil
	}))

	err := s.Update(ctx, func(tx Tx) error {
		_, err := tx.Transfer("wallet/a", "wallet/b", 1000, "")
		return err
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}
