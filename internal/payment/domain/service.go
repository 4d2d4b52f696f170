package domain

import (
	"context"
	"net/http"
)

type Service interface {
	// CreateSession opens a provider checkout session for a pending order.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)

	// HandleWebhook verifies, records and processes one webhook delivery.
	// Redeliveries and ignored event types return without side effects.
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
