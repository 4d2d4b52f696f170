package domain

import "errors"

var (
	ErrProviderNotFound      = errors.New("payment_provider_not_found")
	ErrInvalidConfig         = errors.New("invalid_adapter_config")
	ErrInvalidSignature      = errors.New("invalid_webhook_signature")
	ErrInvalidPayload        = errors.New("invalid_webhook_payload")
	ErrInvalidEvent          = errors.New("invalid_webhook_event")
	ErrEventIgnored          = errors.New("webhook_event_ignored")
	ErrEventAlreadyProcessed = errors.New("webhook_event_already_processed")
	ErrMissingOrderRef       = errors.New("missing_order_reference")
	ErrUnsupportedCurrency   = errors.New("unsupported_currency")
)
