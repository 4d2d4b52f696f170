package domain

import "errors"

var (
	ErrNotFound          = errors.New("order_not_found")
	ErrPlanNotFound      = errors.New("plan_not_found")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidPrice      = errors.New("invalid_total_price")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidAccount    = errors.New("invalid_business_account")
	ErrInvalidTransition = errors.New("invalid_order_transition")

	// ErrTransitionConflict means the conditional status update matched no
	// row: another writer moved the order first.
	ErrTransitionConflict = errors.New("order_transition_conflict")
)
