package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Invoice is issued exactly once per paid order. The unique order_id
// index makes regeneration return the original document.
type Invoice struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID           snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex"`
	InvoiceNumber     string       `json:"invoice_number" gorm:"type:text;not null;uniqueIndex"`
	BusinessAccountID snowflake.ID `json:"business_account_id" gorm:"not null;index"`
	BusinessName      string       `json:"business_name" gorm:"type:text"`
	BillingAddress    string       `json:"billing_address" gorm:"type:text"`
	Amount            int64        `json:"amount" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"type:text;not null"`
	IssuedAt          time.Time    `json:"issued_at" gorm:"not null"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
}

func (Invoice) TableName() string { return "invoices" }

var (
	ErrNotFound     = errors.New("invoice_not_found")
	ErrInvalidState = errors.New("order_not_paid")
)

type Service interface {
	// Generate issues the invoice for a paid order. Calling it again for
	// the same order returns the previously issued invoice.
	Generate(ctx context.Context, orderID snowflake.ID) (*Invoice, error)

	GetByOrder(ctx context.Context, orderID snowflake.ID) (*Invoice, error)

	// Render produces the PDF document for the order's invoice.
	Render(ctx context.Context, orderID snowflake.ID) ([]byte, error)
}
