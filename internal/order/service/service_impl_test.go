package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/order/domain"
	"github.com/edusocial/edusocial/internal/order/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testPlanID = snowflake.ID(4200)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:order_svc_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	ddl := []string{
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			business_account_id INTEGER NOT NULL,
			plan_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			total_price INTEGER NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			provider TEXT,
			provider_ref TEXT,
			paid_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE plans (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			credit_amount INTEGER NOT NULL,
			unit_price INTEGER NOT NULL,
			currency TEXT NOT NULL,
			active BOOLEAN NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	if err := gdb.Exec(`
		INSERT INTO plans (id, name, credit_amount, unit_price, currency, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, testPlanID, "Starter", 100, 999, "USD", true, time.Now().UTC()).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := NewService(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, gdb
}

func validRequest() domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		BusinessAccountID: 7,
		PlanID:            testPlanID,
		Quantity:          2,
		TotalPrice:        1998,
		Currency:          "usd",
	}
}

func TestCreateOrder(t *testing.T) {
	svc, _ := newTestService(t)

	order, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if order.Currency != "USD" {
		t.Fatalf("currency = %s, want USD", order.Currency)
	}
	if order.ID == 0 {
		t.Fatal("order id not assigned")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*domain.CreateOrderRequest)
		wantErr error
	}{
		{"zero quantity", func(r *domain.CreateOrderRequest) { r.Quantity = 0 }, domain.ErrInvalidQuantity},
		{"negative quantity", func(r *domain.CreateOrderRequest) { r.Quantity = -1 }, domain.ErrInvalidQuantity},
		{"zero price", func(r *domain.CreateOrderRequest) { r.TotalPrice = 0 }, domain.ErrInvalidPrice},
		{"negative price", func(r *domain.CreateOrderRequest) { r.TotalPrice = -500 }, domain.ErrInvalidPrice},
		{"blank currency", func(r *domain.CreateOrderRequest) { r.Currency = "  " }, domain.ErrInvalidCurrency},
		{"missing account", func(r *domain.CreateOrderRequest) { r.BusinessAccountID = 0 }, domain.ErrInvalidAccount},
		{"unknown plan", func(r *domain.CreateOrderRequest) { r.PlanID = 999999 }, domain.ErrPlanNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			if _, err := svc.Create(ctx, req); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateOrderInactivePlan(t *testing.T) {
	svc, gdb := newTestService(t)

	if err := gdb.Exec(`UPDATE plans SET active = ? WHERE id = ?`, false, testPlanID).Error; err != nil {
		t.Fatalf("deactivate plan: %v", err)
	}
	if _, err := svc.Create(context.Background(), validRequest()); !errors.Is(err, domain.ErrPlanNotFound) {
		t.Fatalf("err = %v, want ErrPlanNotFound", err)
	}
}

func TestTransitionPendingToPaid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paidAt := time.Now().UTC()
	updated, err := svc.Transition(ctx, order.ID, domain.OrderStatusPaid, domain.TransitionMeta{
		Provider:    "stripe",
		ProviderRef: "cs_test",
		PaidAt:      paidAt,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", updated.Status)
	}
	if updated.Provider != "stripe" || updated.ProviderRef != "cs_test" {
		t.Fatalf("provider meta not recorded: %+v", updated)
	}
	if updated.PaidAt == nil {
		t.Fatal("paid_at not set")
	}
}

func TestTransitionReplayIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Transition(ctx, order.ID, domain.OrderStatusPaid, domain.TransitionMeta{}); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// Second confirmation for the same target status must not error.
	replayed, err := svc.Transition(ctx, order.ID, domain.OrderStatusPaid, domain.TransitionMeta{})
	if err != nil {
		t.Fatalf("replay transition: %v", err)
	}
	if replayed.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", replayed.Status)
	}
}

func TestTransitionFromTerminalRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Transition(ctx, order.ID, domain.OrderStatusFailed, domain.TransitionMeta{}); err != nil {
		t.Fatalf("fail transition: %v", err)
	}

	if _, err := svc.Transition(ctx, order.ID, domain.OrderStatusPaid, domain.TransitionMeta{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestGetUnknownOrder(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Get(context.Background(), 123456); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListByAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, validRequest()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := validRequest()
	other.BusinessAccountID = 8
	if _, err := svc.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	orders, err := svc.ListByAccount(ctx, 7, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("orders = %d, want 3", len(orders))
	}
}
