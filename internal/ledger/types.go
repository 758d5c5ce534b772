package ledger

import (
	"errors"
	"math"
	"time"
)

// Amounts are unsigned base units (1e9 units = 1 SOL). No floats.

// Entry is one custody movement. From is empty for external credits.
type Entry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Amount    uint64    `json:"amount"`
	Memo      string    `json:"memo,omitempty"`
	Sequence  uint64    `json:"sequence"` // monotonic sequence number
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount (must be > 0)")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrOverflow          = errors.New("balance overflow")
)

// MaxBalance is the largest amount an account may hold; balances are stored
// as signed 64-bit integers.
const MaxBalance = math.MaxInt64

// AddBalance returns balance+amount or ErrOverflow past MaxBalance.
func AddBalance(balance, amount uint64) (uint64, error) {
	if amount > MaxBalance || balance > MaxBalance-amount {
		return 0, ErrOverflow
	}
	return balance + amount, nil
}

// AddSat returns a+b, clamped at the maximum uint64.
func AddSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// MulSat returns a*b, clamped at the maximum uint64.
func MulSat(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}
