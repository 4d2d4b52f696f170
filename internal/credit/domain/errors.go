package domain

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid_credit_amount")
	ErrInvalidAccount      = errors.New("invalid_business_account")
	ErrInvalidOrder        = errors.New("invalid_order_reference")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrBalanceContention   = errors.New("credit_balance_contention")
)
