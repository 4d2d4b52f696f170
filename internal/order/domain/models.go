package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrderStatus is the lifecycle state of a credit purchase order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// allowedTransitions is the single source of truth for the order state
// machine. Status only ever moves forward; paid, failed and cancelled are
// terminal.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaid:      {},
	OrderStatusFailed:    {},
	OrderStatusCancelled: {},
}

// CanTransition reports whether from→to is a legal order transition.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status admits no further transitions.
func IsTerminal(status OrderStatus) bool {
	return len(allowedTransitions[status]) == 0
}

// Order is an append-only record of a business account's intent to purchase
// a credit plan. Rows are never deleted; price and quantity are frozen once
// the order leaves pending.
type Order struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	BusinessAccountID snowflake.ID `json:"business_account_id" gorm:"not null;index"`
	PlanID            snowflake.ID `json:"plan_id" gorm:"not null;index"`
	Quantity          int          `json:"quantity" gorm:"not null"`
	TotalPrice        int64        `json:"total_price" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"type:text;not null"`
	Status            OrderStatus  `json:"status" gorm:"type:text;not null;index"`
	Provider          string       `json:"provider" gorm:"type:text"`
	ProviderRef       string       `json:"provider_ref" gorm:"type:text"`
	PaidAt            *time.Time   `json:"paid_at"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// Plan is a purchasable credit bundle.
type Plan struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	CreditAmount int64        `json:"credit_amount" gorm:"not null"`
	UnitPrice    int64        `json:"unit_price" gorm:"not null"`
	Currency     string       `json:"currency" gorm:"type:text;not null"`
	Active       bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

func (Plan) TableName() string { return "plans" }

// TransitionMeta carries payment details recorded alongside a transition.
type TransitionMeta struct {
	Provider    string
	ProviderRef string
	PaidAt      time.Time
}
