package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the durable trace of a received webhook. The unique
// (provider, provider_event_id) pair makes redelivery a no-op.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:2"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	OrderID         snowflake.ID   `json:"order_id" gorm:"index"`
	Status          string         `json:"status" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
	LastError       string         `json:"last_error" gorm:"type:text"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventStatusReceived  = "received"
	EventStatusProcessed = "processed"
	EventStatusFailed    = "failed"
)

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// PaymentEvent is the canonical event shape adapters normalize into.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	ProviderRef     string
	Type            string
	OrderID         snowflake.ID
	Amount          int64
	Currency        string
	OccurredAt      time.Time
	RawPayload      []byte
}

// Session is a provider checkout handle returned to the client.
type Session struct {
	Provider     string `json:"provider"`
	ProviderRef  string `json:"provider_ref"`
	RedirectURL  string `json:"redirect_url"`
	ClientSecret string `json:"client_secret,omitempty"`
	Currency     string `json:"currency"`
	Amount       int64  `json:"amount"`
}

type SessionRequest struct {
	OrderID  snowflake.ID
	Amount   int64
	Currency string
}

const (
	CurrencyPolicyFallback = "fallback"
	CurrencyPolicyReject   = "reject"
)

// AdapterConfig carries provider credentials and the currency policy.
type AdapterConfig struct {
	WebhookSecret       string
	CheckoutURL         string
	SupportedCurrencies []string
	DefaultCurrency     string
	CurrencyPolicy      string
}

type PaymentAdapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}
