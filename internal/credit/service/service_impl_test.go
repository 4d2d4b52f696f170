package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/credit/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:credit_svc_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	ddl := []string{
		`CREATE TABLE credit_balances (
			business_account_id INTEGER PRIMARY KEY,
			total_credits INTEGER NOT NULL DEFAULT 0,
			used_credits INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE credit_transactions (
			id INTEGER PRIMARY KEY,
			business_account_id INTEGER NOT NULL,
			order_id INTEGER,
			type TEXT NOT NULL,
			credit_change INTEGER NOT NULL,
			resulting_balance INTEGER NOT NULL,
			description TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_credit_tx_order_type ON credit_transactions (order_id, type)`,
	}
	for _, stmt := range ddl {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := NewService(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
	}).(*Service)
	return svc, gdb
}

func TestCreditAppliesOncePerOrder(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()
	account := snowflake.ID(101)
	order := snowflake.ID(5001)

	bal, err := svc.Credit(ctx, account, order, 500, "order paid")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if bal.TotalCredits != 500 {
		t.Fatalf("total = %d, want 500", bal.TotalCredits)
	}

	// Redelivered confirmation for the same order must not double-credit.
	bal, err = svc.Credit(ctx, account, order, 500, "order paid")
	if err != nil {
		t.Fatalf("repeat credit: %v", err)
	}
	if bal.TotalCredits != 500 {
		t.Fatalf("total after replay = %d, want 500", bal.TotalCredits)
	}

	var count int64
	if err := gdb.Raw(`SELECT COUNT(1) FROM credit_transactions WHERE order_id = ?`, order).Scan(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 1 {
		t.Fatalf("transaction rows = %d, want 1", count)
	}
}

func TestCreditDistinctOrdersAccumulate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := snowflake.ID(102)

	if _, err := svc.Credit(ctx, account, 6001, 300, ""); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	bal, err := svc.Credit(ctx, account, 6002, 200, "")
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if bal.TotalCredits != 500 {
		t.Fatalf("total = %d, want 500", bal.TotalCredits)
	}
	if bal.Available() != 500 {
		t.Fatalf("available = %d, want 500", bal.Available())
	}
}

func TestCreditRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, 0, 1, 100, ""); !errors.Is(err, domain.ErrInvalidAccount) {
		t.Fatalf("err = %v, want ErrInvalidAccount", err)
	}
	if _, err := svc.Credit(ctx, 1, 0, 100, ""); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Fatalf("err = %v, want ErrInvalidOrder", err)
	}
	if _, err := svc.Credit(ctx, 1, 1, 0, ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Credit(ctx, 1, 1, -5, ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestDebitEnforcesAvailableCredits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := snowflake.ID(103)

	if _, err := svc.Credit(ctx, account, 7001, 100, ""); err != nil {
		t.Fatalf("credit: %v", err)
	}

	bal, err := svc.Debit(ctx, account, 60, "feature unlock")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal.UsedCredits != 60 || bal.Available() != 40 {
		t.Fatalf("used = %d available = %d, want 60/40", bal.UsedCredits, bal.Available())
	}

	if _, err := svc.Debit(ctx, account, 41, "too much"); !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// Exact remainder drains the balance to zero available.
	bal, err = svc.Debit(ctx, account, 40, "drain")
	if err != nil {
		t.Fatalf("drain debit: %v", err)
	}
	if bal.Available() != 0 {
		t.Fatalf("available = %d, want 0", bal.Available())
	}
}

func TestDebitUnknownAccountFails(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Debit(context.Background(), 999, 10, ""); !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
}

func TestTransactionLogReconcilesWithBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := snowflake.ID(104)

	if _, err := svc.Credit(ctx, account, 8001, 400, ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := svc.Debit(ctx, account, 150, ""); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := svc.Credit(ctx, account, 8002, 50, ""); err != nil {
		t.Fatalf("credit: %v", err)
	}

	entries, err := svc.Transactions(ctx, account, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}

	var sum int64
	for _, e := range entries {
		sum += e.CreditChange
	}
	bal, err := svc.Balance(ctx, account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if sum != bal.Available() {
		t.Fatalf("sum of changes = %d, available = %d", sum, bal.Available())
	}
}

func TestBalanceUnknownAccountIsZero(t *testing.T) {
	svc, _ := newTestService(t)

	bal, err := svc.Balance(context.Background(), 555)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.TotalCredits != 0 || bal.UsedCredits != 0 {
		t.Fatalf("balance = %+v, want zero", bal)
	}
}
