// Package store defines the transactional record store and custody primitive
// the insurance core runs against.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gigshield.org/internal/ledger"
)

// MaxRecordSize bounds the encoded size of a single record.
const MaxRecordSize = 4096

var (
	ErrNotFound       = errors.New("record not found")
	ErrAlreadyExists  = errors.New("record already exists")
	ErrRecordTooLarge = errors.New("record exceeds reserved size")
	ErrReadOnly       = errors.New("read-only transaction")
)

// Tx is the view of the store inside one atomic unit of work.
type Tx interface {
	// Get decodes the record at key into dst.
	Get(key string, dst any) error
	Exists(key string) (bool, error)
	// Create stores v under key if and only if key is absent.
	Create(key string, v any) error
	// Put replaces the existing record at key.
	Put(key string, v any) error
	// Keys lists record keys with the given prefix in ascending order.
	Keys(prefix string) ([]string, error)

	Balance(account string) (uint64, error)
	// Credit funds account from outside the system.
	Credit(account string, amount uint64, memo string) (ledger.Entry, error)
	// Transfer debits from and credits to atomically; it fails with
	// ledger.ErrInsufficientFunds when from holds less than amount.
	Transfer(from, to string, amount uint64, memo string) (ledger.Entry, error)
}

// Store runs units of work. Update commits every write made through the Tx
// if fn returns nil and discards all of them otherwise.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	Journal(ctx context.Context, limit int, afterSeq uint64) ([]ledger.Entry, uint64, error)
}

// Encode is the canonical record encoding shared by implementations.
func Encode(key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	if len(data) > MaxRecordSize {
		return nil, fmt.Errorf("%s: %w", key, ErrRecordTooLarge)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(key string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
