package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/config"
	creditdomain "github.com/edusocial/edusocial/internal/credit/domain"
	creditservice "github.com/edusocial/edusocial/internal/credit/service"
	invoicedomain "github.com/edusocial/edusocial/internal/invoice/domain"
	"github.com/edusocial/edusocial/internal/invoice/pdf"
	invoiceservice "github.com/edusocial/edusocial/internal/invoice/service"
	"github.com/edusocial/edusocial/internal/migration"
	orderdomain "github.com/edusocial/edusocial/internal/order/domain"
	orderrepository "github.com/edusocial/edusocial/internal/order/repository"
	orderservice "github.com/edusocial/edusocial/internal/order/service"
	"github.com/edusocial/edusocial/internal/payment/adapters"
	"github.com/edusocial/edusocial/internal/payment/adapters/stripe"
	"github.com/edusocial/edusocial/internal/payment/domain"
	"github.com/edusocial/edusocial/internal/payment/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	webhookSecret  = "whsec_test"
	testAccountID  = snowflake.ID(7)
	webhookPlanID  = snowflake.ID(4200)
	webhookCredits = int64(100)
)

type webhookFixture struct {
	db      *gorm.DB
	svc     domain.Service
	orders  orderdomain.Service
	credits creditdomain.Service
	invoice invoicedomain.Service
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:payment_svc_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.Run(gdb, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Now().UTC()
	if err := gdb.Exec(`
		INSERT INTO plans (id, name, credit_amount, unit_price, currency, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, webhookPlanID, "Starter", webhookCredits, 999, "USD", true, now).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	if err := gdb.Exec(`
		INSERT INTO business_accounts (id, name, billing_address, created_at)
		VALUES (?, ?, ?, ?)
	`, testAccountID, "Acme School", "1 Main St", now).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := zap.NewNop()

	orders := orderservice.NewService(orderservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Repo:  orderrepository.Provide(),
	})
	credits := creditservice.NewService(creditservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
	})
	invoices := invoiceservice.NewService(invoiceservice.Params{
		DB:       gdb,
		Log:      log,
		GenID:    node,
		Orders:   orders,
		Renderer: pdf.NewRenderer(),
	})

	cfg := config.Config{
		Payment: config.PaymentConfig{
			Provider:            "stripe",
			WebhookSecret:       webhookSecret,
			CheckoutURL:         "https://checkout.example.com/session",
			SupportedCurrencies: []string{"USD", "EUR"},
			DefaultCurrency:     "USD",
			CurrencyPolicy:      domain.CurrencyPolicyFallback,
		},
	}
	svc := NewService(Params{
		DB:       gdb,
		Log:      log,
		GenID:    node,
		Config:   cfg,
		Registry: adapters.NewRegistry(stripe.NewFactory()),
		Repo:     repository.Provide(),
		Orders:   orders,
		Credits:  credits,
		Invoices: invoices,
	})

	return &webhookFixture{db: gdb, svc: svc, orders: orders, credits: credits, invoice: invoices}
}

func (f *webhookFixture) createOrder(t *testing.T) *orderdomain.Order {
	t.Helper()
	order, err := f.orders.Create(context.Background(), orderdomain.CreateOrderRequest{
		BusinessAccountID: testAccountID,
		PlanID:            webhookPlanID,
		Quantity:          2,
		TotalPrice:        1998,
		Currency:          "USD",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func signedHeaders(payload []byte) http.Header {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func succeededPayload(eventID string, orderID snowflake.ID) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"created": %d,
		"data": {"object": {
			"id": "cs_test",
			"amount_total": 1998,
			"currency": "usd",
			"metadata": {"order_id": %q}
		}}
	}`, eventID, time.Now().Unix(), orderID.String()))
}

func failedPayload(eventID string, orderID snowflake.ID) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.expired",
		"created": %d,
		"data": {"object": {
			"id": "cs_test",
			"amount_total": 1998,
			"currency": "usd",
			"metadata": {"order_id": %q}
		}}
	}`, eventID, time.Now().Unix(), orderID.String()))
}

func TestWebhookConfirmsOrder(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	payload := succeededPayload("evt_confirm", order.ID)
	if err := f.svc.HandleWebhook(ctx, "stripe", payload, signedHeaders(payload)); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	updated, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if updated.Status != orderdomain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", updated.Status)
	}

	balance, err := f.credits.Balance(ctx, testAccountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got, want := balance.Available(), webhookCredits*2; got != want {
		t.Fatalf("available = %d, want %d", got, want)
	}

	if _, err := f.invoice.GetByOrder(ctx, order.ID); err != nil {
		t.Fatalf("invoice: %v", err)
	}
}

func TestWebhookDuplicateDeliveryCreditsOnce(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	payload := succeededPayload("evt_dup", order.ID)
	headers := signedHeaders(payload)
	if err := f.svc.HandleWebhook(ctx, "stripe", payload, headers); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.svc.HandleWebhook(ctx, "stripe", payload, headers); !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		t.Fatalf("second delivery err = %v, want ErrEventAlreadyProcessed", err)
	}

	balance, err := f.credits.Balance(ctx, testAccountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got, want := balance.Available(), webhookCredits*2; got != want {
		t.Fatalf("available = %d, want %d", got, want)
	}

	var invoiceCount int64
	if err := f.db.Raw(`SELECT COUNT(1) FROM invoices WHERE order_id = ?`, order.ID).Scan(&invoiceCount).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if invoiceCount != 1 {
		t.Fatalf("invoices = %d, want 1", invoiceCount)
	}
}

func TestWebhookRetryAfterDuplicateEventIDCreditsOnce(t *testing.T) {
	// A distinct provider event for an already-paid order must not double
	// credit; the order transition replay and the credit uniqueness both
	// guard it.
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	first := succeededPayload("evt_retry_1", order.ID)
	if err := f.svc.HandleWebhook(ctx, "stripe", first, signedHeaders(first)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second := succeededPayload("evt_retry_2", order.ID)
	if err := f.svc.HandleWebhook(ctx, "stripe", second, signedHeaders(second)); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	balance, err := f.credits.Balance(ctx, testAccountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got, want := balance.Available(), webhookCredits*2; got != want {
		t.Fatalf("available = %d, want %d", got, want)
	}
}

func TestWebhookRedeliveryAfterFailureReprocesses(t *testing.T) {
	// First delivery hit a transient failure after the event row was
	// recorded. The provider retries on the 5xx; the retry must run the
	// event again instead of acknowledging it as already processed.
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	payload := succeededPayload("evt_redeliver", order.ID)
	if err := f.db.Exec(`
		INSERT INTO payment_events
			(id, provider, provider_event_id, event_type, order_id, status, payload, received_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, 555001, "stripe", "evt_redeliver", domain.EventTypePaymentSucceeded, order.ID,
		domain.EventStatusFailed, payload, time.Now().UTC(), "credit ledger unavailable").Error; err != nil {
		t.Fatalf("seed failed event: %v", err)
	}

	if err := f.svc.HandleWebhook(ctx, "stripe", payload, signedHeaders(payload)); err != nil {
		t.Fatalf("retried delivery: %v", err)
	}

	updated, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if updated.Status != orderdomain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid after retried delivery", updated.Status)
	}

	balance, err := f.credits.Balance(ctx, testAccountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got, want := balance.Available(), webhookCredits*2; got != want {
		t.Fatalf("available = %d, want %d", got, want)
	}

	var status string
	if err := f.db.Raw(`SELECT status FROM payment_events WHERE provider_event_id = ?`, "evt_redeliver").Scan(&status).Error; err != nil {
		t.Fatalf("read event: %v", err)
	}
	if status != string(domain.EventStatusProcessed) {
		t.Fatalf("event status = %s, want processed", status)
	}

	// Once processed, further redeliveries short-circuit.
	if err := f.svc.HandleWebhook(ctx, "stripe", payload, signedHeaders(payload)); !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		t.Fatalf("err = %v, want ErrEventAlreadyProcessed", err)
	}
}

func TestWebhookFailedEventMarksOrderFailed(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	payload := failedPayload("evt_fail", order.ID)
	if err := f.svc.HandleWebhook(ctx, "stripe", payload, signedHeaders(payload)); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	updated, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if updated.Status != orderdomain.OrderStatusFailed {
		t.Fatalf("status = %s, want failed", updated.Status)
	}

	balance, err := f.credits.Balance(ctx, testAccountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Available() != 0 {
		t.Fatalf("available = %d, want 0", balance.Available())
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.createOrder(t)

	payload := succeededPayload("evt_sig", order.ID)
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1,v1=deadbeef")

	err := f.svc.HandleWebhook(context.Background(), "stripe", payload, headers)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	var eventCount int64
	if err := f.db.Raw(`SELECT COUNT(1) FROM payment_events`).Scan(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 0 {
		t.Fatalf("events = %d, want 0", eventCount)
	}
}

func TestWebhookUnknownProvider(t *testing.T) {
	f := newWebhookFixture(t)

	err := f.svc.HandleWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("err = %v, want ErrProviderNotFound", err)
	}
}

func TestWebhookUnknownOrderMarksEventFailed(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	payload := succeededPayload("evt_orphan", snowflake.ID(987654321))
	err := f.svc.HandleWebhook(ctx, "stripe", payload, signedHeaders(payload))
	if !errors.Is(err, orderdomain.ErrNotFound) {
		t.Fatalf("err = %v, want order ErrNotFound", err)
	}

	var rec struct {
		Status      string
		ProcessedAt *time.Time
	}
	if err := f.db.Raw(`SELECT status, processed_at FROM payment_events WHERE provider_event_id = ?`, "evt_orphan").Scan(&rec).Error; err != nil {
		t.Fatalf("read event: %v", err)
	}
	if rec.Status != string(domain.EventStatusFailed) {
		t.Fatalf("event status = %s, want failed", rec.Status)
	}
	if rec.ProcessedAt != nil {
		t.Fatalf("processed_at = %v, want NULL so a retry reprocesses", rec.ProcessedAt)
	}
}
