package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TransactionType marks the direction of a ledger mutation.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// Balance is the running credit position for a business account.
// total_credits only grows through confirmed paid orders and
// used_credits never exceeds total_credits.
type Balance struct {
	BusinessAccountID snowflake.ID `json:"business_account_id" gorm:"primaryKey"`
	TotalCredits      int64        `json:"total_credits" gorm:"not null"`
	UsedCredits       int64        `json:"used_credits" gorm:"not null"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
}

func (Balance) TableName() string { return "credit_balances" }

// Available is the spendable remainder.
func (b Balance) Available() int64 {
	return b.TotalCredits - b.UsedCredits
}

// Transaction is one immutable log row per balance mutation. The unique
// (order_id, type) index is the idempotency gate for order confirmations.
type Transaction struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	BusinessAccountID snowflake.ID    `json:"business_account_id" gorm:"not null;index"`
	OrderID           *snowflake.ID   `json:"order_id" gorm:"uniqueIndex:ux_credit_tx_order_type,priority:1"`
	Type              TransactionType `json:"type" gorm:"type:text;not null;uniqueIndex:ux_credit_tx_order_type,priority:2"`
	CreditChange      int64           `json:"credit_change" gorm:"not null"`
	ResultingBalance  int64           `json:"resulting_balance" gorm:"not null"`
	Description       string          `json:"description" gorm:"type:text"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "credit_transactions" }
