package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"gigshield.org/internal/ledger"
)

// Memory implements Store in process. Update calls are serialized by a
// single mutex, which gives every unit of work a total order.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
	book    *ledger.Book
	clock   clockwork.Clock
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store. clock stamps journal entries; nil means
// the wall clock.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		records: make(map[string][]byte),
		book:    ledger.NewBook(),
		clock:   clock,
	}
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		base:     m.records,
		writes:   make(map[string][]byte),
		book:     m.book.Clone(),
		clock:    m.clock,
		writable: true,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range tx.writes {
		m.records[k] = v
	}
	m.book = tx.book
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{base: m.records, book: m.book, clock: m.clock})
}

func (m *Memory) Journal(ctx context.Context, limit int, afterSeq uint64) ([]ledger.Entry, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, last := m.book.Entries(limit, afterSeq)
	return items, last, nil
}

// memTx reads through staged writes to the committed records.
type memTx struct {
	base     map[string][]byte
	writes   map[string][]byte
	book     *ledger.Book
	clock    clockwork.Clock
	writable bool
}

func (t *memTx) lookup(key string) ([]byte, bool) {
	if v, ok := t.writes[key]; ok {
		return v, true
	}
	v, ok := t.base[key]
	return v, ok
}

func (t *memTx) Get(key string, dst any) error {
	data, ok := t.lookup(key)
	if !ok {
		return ErrNotFound
	}
	return Decode(key, data, dst)
}

func (t *memTx) Exists(key string) (bool, error) {
	_, ok := t.lookup(key)
	return ok, nil
}

func (t *memTx) Create(key string, v any) error {
	if !t.writable {
		return ErrReadOnly
	}
	if _, ok := t.lookup(key); ok {
		return ErrAlreadyExists
	}
	data, err := Encode(key, v)
	if err != nil {
		return err
	}
	t.writes[key] = data
	return nil
}

func (t *memTx) Put(key string, v any) error {
	if !t.writable {
		return ErrReadOnly
	}
	if _, ok := t.lookup(key); !ok {
		return ErrNotFound
	}
	data, err := Encode(key, v)
	if err != nil {
		return err
	}
	t.writes[key] = data
	return nil
}

func (t *memTx) Keys(prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, src := range []map[string][]byte{t.base, t.writes} {
		for k := range src {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memTx) Balance(account string) (uint64, error) {
	return t.book.Balance(account), nil
}

func (t *memTx) Credit(account string, amount uint64, memo string) (ledger.Entry, error) {
	if !t.writable {
		return ledger.Entry{}, ErrReadOnly
	}
	return t.book.Credit(account, amount, memo, t.clock.Now())
}

func (t *memTx) Transfer(from, to string, amount uint64, memo string) (ledger.Entry, error) {
	if !t.writable {
		return ledger.Entry{}, ErrReadOnly
	}
	return t.book.Transfer(from, to, amount, memo, t.clock.Now())
}
