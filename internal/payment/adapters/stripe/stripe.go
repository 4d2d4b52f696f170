package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/payment/domain"
	"github.com/google/uuid"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}
	checkoutURL := strings.TrimSpace(cfg.CheckoutURL)
	if checkoutURL == "" {
		return nil, domain.ErrInvalidConfig
	}

	supported := map[string]struct{}{}
	for _, c := range cfg.SupportedCurrencies {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			supported[c] = struct{}{}
		}
	}
	defaultCurrency := strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if defaultCurrency == "" {
		return nil, domain.ErrInvalidConfig
	}
	if _, ok := supported[defaultCurrency]; !ok {
		supported[defaultCurrency] = struct{}{}
	}

	policy := cfg.CurrencyPolicy
	if policy != domain.CurrencyPolicyReject {
		policy = domain.CurrencyPolicyFallback
	}

	return &Adapter{
		webhookSecret:   secret,
		checkoutURL:     checkoutURL,
		supported:       supported,
		defaultCurrency: defaultCurrency,
		currencyPolicy:  policy,
	}, nil
}

type Adapter struct {
	webhookSecret   string
	checkoutURL     string
	supported       map[string]struct{}
	defaultCurrency string
	currencyPolicy  string
}

func (a *Adapter) Provider() string {
	return "stripe"
}

func (a *Adapter) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if req.OrderID == 0 {
		return nil, domain.ErrMissingOrderRef
	}

	currency, err := a.resolveCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	ref := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	redirect, err := url.Parse(a.checkoutURL)
	if err != nil {
		return nil, domain.ErrInvalidConfig
	}
	query := redirect.Query()
	query.Set("session", ref)
	query.Set("order_id", req.OrderID.String())
	query.Set("amount", strconv.FormatInt(req.Amount, 10))
	query.Set("currency", currency)
	redirect.RawQuery = query.Encode()

	return &domain.Session{
		Provider:    "stripe",
		ProviderRef: ref,
		RedirectURL: redirect.String(),
		Currency:    currency,
		Amount:      req.Amount,
	}, nil
}

func (a *Adapter) resolveCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return a.defaultCurrency, nil
	}
	if _, ok := a.supported[currency]; ok {
		return currency, nil
	}
	if a.currencyPolicy == domain.CurrencyPolicyReject {
		return "", domain.ErrUnsupportedCurrency
	}
	return a.defaultCurrency, nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed", "payment_intent.succeeded":
		return a.parseSession(event, payload, domain.EventTypePaymentSucceeded)
	case "checkout.session.expired", "payment_intent.payment_failed":
		return a.parseSession(event, payload, domain.EventTypePaymentFailed)
	default:
		return nil, domain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSession struct {
	ID          string         `json:"id"`
	Amount      int64          `json:"amount"`
	AmountTotal int64          `json:"amount_total"`
	Currency    string         `json:"currency"`
	Created     int64          `json:"created"`
	Metadata    map[string]any `json:"metadata"`
}

func (a *Adapter) parseSession(event stripeEvent, payload []byte, eventType string) (*domain.PaymentEvent, error) {
	var session stripeSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	amount := session.AmountTotal
	if amount <= 0 {
		amount = session.Amount
	}
	orderID, err := parseOrderID(session.Metadata)
	if err != nil {
		return nil, err
	}

	occurredAt := timestamp(session.Created, event.Created)
	return &domain.PaymentEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		ProviderRef:     session.ID,
		Type:            eventType,
		OrderID:         orderID,
		Amount:          amount,
		Currency:        strings.ToUpper(strings.TrimSpace(session.Currency)),
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func parseOrderID(metadata map[string]any) (snowflake.ID, error) {
	raw := readMetadataValue(metadata, "order_id")
	if raw == "" {
		return 0, domain.ErrMissingOrderRef
	}
	orderID, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, domain.ErrMissingOrderRef
	}
	return orderID, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	}
	return ""
}
