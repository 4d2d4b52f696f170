package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateOrderRequest struct {
	BusinessAccountID snowflake.ID
	PlanID            snowflake.ID
	Quantity          int
	TotalPrice        int64
	Currency          string
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	ListByAccount(ctx context.Context, accountID snowflake.ID, limit int) ([]Order, error)
	GetPlan(ctx context.Context, id snowflake.ID) (*Plan, error)

	// Transition applies a compare-and-swap status update. Re-requesting
	// the order's current status is a no-op returning the stored order, so
	// duplicate webhook deliveries stay idempotent.
	Transition(ctx context.Context, id snowflake.ID, target OrderStatus, meta TransitionMeta) (*Order, error)
}
