package pg

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"

	"gigshield.org/internal/ids"
	"gigshield.org/internal/keys"
	"gigshield.org/internal/ledger"
	"gigshield.org/internal/store"
)

type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

var _ store.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, nil), nil
}

// New wraps an existing handle. A nil clock means the wall clock.
func New(db *sql.DB, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clock}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// maxAttempts bounds how often Update reruns a transaction PostgreSQL
// aborted to serialize it against a concurrent one.
const maxAttempts = 5

// Update runs fn in a serializable transaction. When PostgreSQL aborts it
// with a serialization failure or as a deadlock victim, fn is rerun from
// the start in a fresh transaction, so fn must not keep state across calls.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.update(ctx, fn)
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// retryable reports SQLSTATE 40001 (serialization_failure) and 40P01
// (deadlock_detected).
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (s *Store) update(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{ctx: ctx, tx: tx, clock: s.clock, writable: true}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&pgTx{ctx: ctx, tx: tx, clock: s.clock})
}

func (s *Store) Journal(ctx context.Context, limit int, afterSeq uint64) ([]ledger.Entry, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, created_at, coalesce(from_account,''), to_account, amount, coalesce(memo,''), sequence
		from journal
		where sequence > $1
		order by sequence asc
		limit $2
	`, afterSeq, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []ledger.Entry
	var last uint64
	for rows.Next() {
		var e ledger.Entry
		var amount int64
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.From, &e.To, &amount, &e.Memo, &e.Sequence); err != nil {
			return nil, 0, err
		}
		e.Amount = uint64(amount)
		res = append(res, e)
		last = e.Sequence
	}
	return res, last, rows.Err()
}

type pgTx struct {
	ctx      context.Context
	tx       *sql.Tx
	clock    clockwork.Clock
	writable bool
}

func (t *pgTx) Get(key string, dst any) error {
	q := `select body from records where key=$1`
	if t.writable {
		q += ` for update`
	}
	var body string
	err := t.tx.QueryRowContext(t.ctx, q, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.Decode(key, []byte(body), dst)
}

func (t *pgTx) Exists(key string) (bool, error) {
	var ok bool
	err := t.tx.QueryRowContext(t.ctx, `select exists(select 1 from records where key=$1)`, key).Scan(&ok)
	return ok, err
}

func (t *pgTx) Create(key string, v any) error {
	if !t.writable {
		return store.ErrReadOnly
	}
	body, err := store.Encode(key, v)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, `
		insert into records(key, kind, body) values ($1,$2,$3)
		on conflict (key) do nothing
	`, key, keys.Kind(key), string(body))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (t *pgTx) Put(key string, v any) error {
	if !t.writable {
		return store.ErrReadOnly
	}
	body, err := store.Encode(key, v)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, `update records set body=$2, updated_at=now() where key=$1`, key, string(body))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) Keys(prefix string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		select key from records where left(key, length($1)) = $1 order by key asc
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (t *pgTx) Balance(account string) (uint64, error) {
	var amt int64
	err := t.tx.QueryRowContext(t.ctx, `select amount from balances where account=$1`, account).Scan(&amt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(amt), nil
}

func (t *pgTx) Credit(account string, amount uint64, memo string) (ledger.Entry, error) {
	if !t.writable {
		return ledger.Entry{}, store.ErrReadOnly
	}
	if strings.TrimSpace(account) == "" {
		return ledger.Entry{}, ledger.ErrInvalidAccount
	}
	amt, err := bigint(amount)
	if err != nil {
		return ledger.Entry{}, err
	}
	res, err := t.tx.ExecContext(t.ctx, `
		insert into balances(account, amount) values ($1,$2)
		on conflict (account) do update set amount = balances.amount + excluded.amount
		where balances.amount <= $3 - excluded.amount
	`, account, amt, int64(ledger.MaxBalance))
	if err != nil {
		return ledger.Entry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Entry{}, err
	}
	if n == 0 {
		return ledger.Entry{}, ledger.ErrOverflow
	}
	return t.record("", account, amount, memo)
}

func (t *pgTx) Transfer(from, to string, amount uint64, memo string) (ledger.Entry, error) {
	if !t.writable {
		return ledger.Entry{}, store.ErrReadOnly
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" || from == to {
		return ledger.Entry{}, ledger.ErrInvalidAccount
	}
	amt, err := bigint(amount)
	if err != nil {
		return ledger.Entry{}, err
	}

	// Ensure balance rows exist, then lock them in stable order to avoid deadlocks
	for _, acc := range sorted(from, to) {
		if _, err := t.tx.ExecContext(t.ctx, `
			insert into balances(account, amount) values ($1,0) on conflict do nothing
		`, acc); err != nil {
			return ledger.Entry{}, err
		}
	}
	var fromBal, toBal int64
	for _, acc := range sorted(from, to) {
		var bal int64
		if err := t.tx.QueryRowContext(t.ctx, `
			select amount from balances where account=$1 for update
		`, acc).Scan(&bal); err != nil {
			return ledger.Entry{}, err
		}
		if acc == from {
			fromBal = bal
		} else {
			toBal = bal
		}
	}
	if fromBal < amt {
		return ledger.Entry{}, ledger.ErrInsufficientFunds
	}
	if toBal > math.MaxInt64-amt {
		return ledger.Entry{}, ledger.ErrOverflow
	}

	if _, err := t.tx.ExecContext(t.ctx, `
		update balances set amount = amount - $2 where account=$1
	`, from, amt); err != nil {
		return ledger.Entry{}, err
	}
	if _, err := t.tx.ExecContext(t.ctx, `
		update balances set amount = amount + $2 where account=$1
	`, to, amt); err != nil {
		return ledger.Entry{}, err
	}
	return t.record(from, to, amount, memo)
}

func (t *pgTx) record(from, to string, amount uint64, memo string) (ledger.Entry, error) {
	now := t.clock.Now().UTC()
	e := ledger.Entry{
		ID:        ids.NewAt(now),
		CreatedAt: now,
		From:      from,
		To:        to,
		Amount:    amount,
		Memo:      memo,
	}
	if err := t.tx.QueryRowContext(t.ctx, `
		insert into journal(id, from_account, to_account, amount, memo, created_at)
		values ($1,nullif($2,''),$3,$4,$5,$6) returning sequence
	`, e.ID, from, to, int64(amount), memo, now).Scan(&e.Sequence); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

// --- helpers ---
func bigint(amount uint64) (int64, error) {
	if amount == 0 {
		return 0, ledger.ErrInvalidAmount
	}
	if amount > math.MaxInt64 {
		return 0, ledger.ErrOverflow
	}
	return int64(amount), nil
}

func sorted(a, b string) []string {
	if a <= b {
		return []string{a, b}
	}
	return []string{b, a}
}
