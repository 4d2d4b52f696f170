package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CheckoutRequest struct {
	BusinessAccountID snowflake.ID
	PlanID            snowflake.ID
	Quantity          int
	Currency          string
}

type CheckoutResult struct {
	OrderID      snowflake.ID `json:"order_id"`
	Provider     string       `json:"provider"`
	RedirectURL  string       `json:"redirect_url"`
	ClientSecret string       `json:"client_secret,omitempty"`
}

// Service ties order creation and the payment session into one flow.
type Service interface {
	Start(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}
