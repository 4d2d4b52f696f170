package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Credit grows the account's total by amount. Idempotent per orderID:
	// the second application for the same order is a no-op returning the
	// stored balance.
	Credit(ctx context.Context, accountID, orderID snowflake.ID, amount int64, description string) (*Balance, error)

	// Debit consumes available credits, failing with ErrInsufficientCredits
	// when used_credits + amount would exceed total_credits.
	Debit(ctx context.Context, accountID snowflake.ID, amount int64, reason string) (*Balance, error)

	Balance(ctx context.Context, accountID snowflake.ID) (*Balance, error)
	Transactions(ctx context.Context, accountID snowflake.ID, limit int) ([]Transaction, error)
}
