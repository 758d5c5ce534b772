package pg

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"

	"gigshield.org/internal/ledger"
	"gigshield.org/internal/store"
)

type poolDoc struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(db, clock), mock
}

func TestCreateReportsExistingKey(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into records").
		WithArgs("pool/admin/rides", "pool", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.Create("pool/admin/rides", poolDoc{ID: "rides", Active: true})
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetMissingRecord(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select body from records").
		WithArgs("claim/x").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))
	mock.ExpectRollback()

	err := s.View(context.Background(), func(tx store.Tx) error {
		var doc poolDoc
		return tx.Get("claim/x", &doc)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateCommitsRecordAndCredit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select body from records where key=\\$1 for update").
		WithArgs("pool/admin/rides").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(`{"id":"rides","active":true}`))
	mock.ExpectExec("update records set body").
		WithArgs("pool/admin/rides", `{"id":"rides","active":false}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into balances").
		WithArgs("wallet/alice", int64(500), int64(math.MaxInt64)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into journal").
		WithArgs(sqlmock.AnyArg(), "", "wallet/alice", int64(500), "fund", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(7))
	mock.ExpectCommit()

	var entry ledger.Entry
	err := s.Update(context.Background(), func(tx store.Tx) error {
		var doc poolDoc
		if err := tx.Get("pool/admin/rides", &doc); err != nil {
			return err
		}
		doc.Active = false
		if err := tx.Put("pool/admin/rides", doc); err != nil {
			return err
		}
		var err error
		entry, err = tx.Credit("wallet/alice", 500, "fund")
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if entry.Sequence != 7 || entry.Amount != 500 || entry.From != "" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransferInsufficientFundsRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	// pool-vault sorts before wallet, so it is touched and locked first
	mock.ExpectExec("insert into balances").WithArgs("pool-vault/p").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into balances").WithArgs("wallet/alice").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select amount from balances").WithArgs("pool-vault/p").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(0)))
	mock.ExpectQuery("select amount from balances").WithArgs("wallet/alice").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(50)))
	mock.ExpectRollback()

	err := s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Transfer("wallet/alice", "pool-vault/p", 100, "premium")
		return err
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransferAppliesBothLegs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into balances").WithArgs("pool-vault/p").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into balances").WithArgs("wallet/alice").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select amount from balances").WithArgs("pool-vault/p").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(4000)))
	mock.ExpectQuery("select amount from balances").WithArgs("wallet/alice").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(0)))
	mock.ExpectExec("update balances set amount = amount -").WithArgs("pool-vault/p", int64(4000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update balances set amount = amount \\+").WithArgs("wallet/alice", int64(4000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into journal").
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(12))
	mock.ExpectCommit()

	err := s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Transfer("pool-vault/p", "wallet/alice", 4000, "payout")
		return err
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBalanceOfUnknownAccountIsZero(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select amount from balances").WithArgs("wallet/nobody").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}))
	mock.ExpectRollback()

	var bal uint64 = 1
	err := s.View(context.Background(), func(tx store.Tx) error {
		var err error
		bal, err = tx.Balance("wallet/nobody")
		return err
	})
	if err != nil || bal != 0 {
		t.Fatalf("expected zero balance, got %d (%v)", bal, err)
	}
}

func TestJournalPaging(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("from journal").
		WithArgs(uint64(3), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "from_account", "to_account", "amount", "memo", "sequence"}).
			AddRow("01A", created, "", "wallet/a", int64(10), "fund", int64(4)).
			AddRow("01B", created, "wallet/a", "pool-vault/p", int64(5), "premium", int64(5)))

	items, next, err := s.Journal(context.Background(), 2, 3)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(items) != 2 || next != 5 {
		t.Fatalf("unexpected page: %d items, next=%d", len(items), next)
	}
	if items[1].From != "wallet/a" || items[1].Amount != 5 {
		t.Fatalf("unexpected entry: %#v", items[1])
	}
}

func TestReadOnlyViewRejectsWrites(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.View(context.Background(), func(tx store.Tx) error {
		return tx.Create("pool/a/b", poolDoc{})
	})
	if !errors.Is(err, store.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestUpdateRetriesSerializationFailures(t *testing.T) {
	s, mock := newMockStore(t)

	// A concurrent voter committed first: the read aborts with 40001.
	mock.ExpectBegin()
	mock.ExpectQuery("select exists").WithArgs("vote/c-1/v2").
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()
	// Commit-time failures are retried as well.
	mock.ExpectBegin()
	mock.ExpectQuery("select exists").WithArgs("vote/c-1/v2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectBegin()
	mock.ExpectQuery("select exists").WithArgs("vote/c-1/v2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectCommit()

	calls := 0
	err := s.Update(context.Background(), func(tx store.Tx) error {
		calls++
		_, err := tx.Exists("vote/c-1/v2")
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateGivesUpAfterRepeatedConflicts(t *testing.T) {
	s, mock := newMockStore(t)
	conflict := &pgconn.PgError{Code: "40001"}
	for i := 0; i < maxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("select exists").WillReturnError(conflict)
		mock.ExpectRollback()
	}

	calls := 0
	err := s.Update(context.Background(), func(tx store.Tx) error {
		calls++
		_, err := tx.Exists("claim/x")
		return err
	})
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "40001" {
		t.Fatalf("expected serialization failure, got %v", err)
	}
	if calls != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateDoesNotRetryDomainErrors(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := s.Update(context.Background(), func(store.Tx) error {
		calls++
		return ledger.ErrInsufficientFunds
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) || calls != 1 {
		t.Fatalf("got err=%v calls=%d", err, calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreditRefusesBalanceOverflow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into balances").
		WithArgs("pool-vault/p", int64(10), int64(math.MaxInt64)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Credit("pool-vault/p", 10, "fund")
		return err
	})
	if !errors.Is(err, ledger.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransferRefusesCreditOverflow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into balances").WithArgs("pool-vault/p").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into balances").WithArgs("wallet/alice").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select amount from balances").WithArgs("pool-vault/p").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(math.MaxInt64 - 5)))
	mock.ExpectQuery("select amount from balances").WithArgs("wallet/alice").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(100)))
	mock.ExpectRollback()

	err := s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Transfer("wallet/alice", "pool-vault/p", 10, "premium")
		return err
	})
	if !errors.Is(err, ledger.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
