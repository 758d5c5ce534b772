package ledger

import (
	"strings"
	"time"

	"gigshield.org/internal/ids"
)

// Book keeps custody balances and the journal of movements in memory.
// It is not safe for concurrent use; callers serialize access (store.Memory
// clones the book per transaction and swaps it in on commit).
type Book struct {
	balances map[string]uint64
	entries  []Entry
	seq      uint64
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{balances: make(map[string]uint64)}
}

// Clone returns a deep copy of the balances. The journal slice is shared up
// to its current length; appends on the clone never alias the original.
func (b *Book) Clone() *Book {
	out := &Book{
		balances: make(map[string]uint64, len(b.balances)),
		entries:  b.entries[:len(b.entries):len(b.entries)],
		seq:      b.seq,
	}
	for k, v := range b.balances {
		out.balances[k] = v
	}
	return out
}

// Balance returns the balance of account; unknown accounts hold zero.
func (b *Book) Balance(account string) uint64 {
	return b.balances[account]
}

// Credit adds amount to account from outside the system.
func (b *Book) Credit(account string, amount uint64, memo string, at time.Time) (Entry, error) {
	if strings.TrimSpace(account) == "" {
		return Entry{}, ErrInvalidAccount
	}
	if amount == 0 {
		return Entry{}, ErrInvalidAmount
	}
	next, err := AddBalance(b.balances[account], amount)
	if err != nil {
		return Entry{}, err
	}
	b.balances[account] = next
	return b.record("", account, amount, memo, at), nil
}

// Transfer moves amount between two accounts. The source must hold at least
// amount; otherwise nothing changes.
func (b *Book) Transfer(from, to string, amount uint64, memo string, at time.Time) (Entry, error) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" || from == to {
		return Entry{}, ErrInvalidAccount
	}
	if amount == 0 {
		return Entry{}, ErrInvalidAmount
	}
	if b.balances[from] < amount {
		return Entry{}, ErrInsufficientFunds
	}
	credited, err := AddBalance(b.balances[to], amount)
	if err != nil {
		return Entry{}, err
	}
	b.balances[from] -= amount
	b.balances[to] = credited
	return b.record(from, to, amount, memo, at), nil
}

// Entries pages through the journal after the given sequence number.
func (b *Book) Entries(limit int, afterSeq uint64) ([]Entry, uint64) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var res []Entry
	var last uint64
	for _, e := range b.entries {
		if e.Sequence <= afterSeq {
			continue
		}
		res = append(res, e)
		last = e.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last
}

func (b *Book) record(from, to string, amount uint64, memo string, at time.Time) Entry {
	b.seq++
	e := Entry{
		ID:        ids.NewAt(at),
		CreatedAt: at.UTC(),
		From:      from,
		To:        to,
		Amount:    amount,
		Memo:      memo,
		Sequence:  b.seq,
	}
	b.entries = append(b.entries, e)
	return e
}
