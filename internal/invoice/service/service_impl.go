package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/invoice/domain"
	"github.com/edusocial/edusocial/internal/invoice/pdf"
	"github.com/edusocial/edusocial/internal/metrics"
	orderdomain "github.com/edusocial/edusocial/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Orders   orderdomain.Service
	Renderer *pdf.Renderer
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	orders   orderdomain.Service
	renderer *pdf.Renderer
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		orders:   p.Orders,
		renderer: p.Renderer,
		metrics:  p.Metrics,
	}
}

func (s *Service) Generate(ctx context.Context, orderID snowflake.ID) (*domain.Invoice, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderdomain.OrderStatusPaid {
		return nil, domain.ErrInvalidState
	}

	if existing, err := s.findByOrder(ctx, orderID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	issuedAt := time.Now().UTC()
	if order.PaidAt != nil {
		issuedAt = order.PaidAt.UTC()
	}

	name, address := s.billingProfile(ctx, order.BusinessAccountID)
	inv := &domain.Invoice{
		ID:                s.genID.Generate(),
		OrderID:           order.ID,
		InvoiceNumber:     invoiceNumber(order.ID, issuedAt),
		BusinessAccountID: order.BusinessAccountID,
		BusinessName:      name,
		BillingAddress:    address,
		Amount:            order.TotalPrice,
		Currency:          order.Currency,
		IssuedAt:          issuedAt,
		CreatedAt:         time.Now().UTC(),
	}

	res := s.db.WithContext(ctx).Exec(`
		INSERT INTO invoices
			(id, order_id, invoice_number, business_account_id, business_name, billing_address, amount, currency, issued_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO NOTHING
	`, inv.ID, inv.OrderID, inv.InvoiceNumber, inv.BusinessAccountID, inv.BusinessName,
		inv.BillingAddress, inv.Amount, inv.Currency, inv.IssuedAt, inv.CreatedAt)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent generation already issued it.
		return s.GetByOrder(ctx, orderID)
	}

	if s.metrics != nil {
		s.metrics.InvoicesGenerated.Inc()
	}
	s.log.Info("invoice issued",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("order_id", order.ID.String()),
		zap.Int64("amount", inv.Amount),
	)
	return inv, nil
}

func (s *Service) GetByOrder(ctx context.Context, orderID snowflake.ID) (*domain.Invoice, error) {
	inv, err := s.findByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (s *Service) Render(ctx context.Context, orderID snowflake.ID) ([]byte, error) {
	inv, err := s.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	plan, err := s.orders.GetPlan(ctx, order.PlanID)
	if err != nil {
		return nil, err
	}

	doc := pdf.Document{
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.IssuedAt.Format("2006-01-02"),
		BillToName:    inv.BusinessName,
		BillToAddress: inv.BillingAddress,
		Items: []pdf.LineItem{{
			Description: fmt.Sprintf("%s (%d credits)", plan.Name, plan.CreditAmount),
			Qty:         order.Quantity,
			UnitPrice:   formatMinor(plan.UnitPrice),
			Amount:      formatMinor(inv.Amount),
		}},
		Total:    formatMinor(inv.Amount),
		Currency: inv.Currency,
	}
	return s.renderer.Render(doc)
}

func (s *Service) findByOrder(ctx context.Context, orderID snowflake.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	res := s.db.WithContext(ctx).Raw(`
		SELECT id, order_id, invoice_number, business_account_id, business_name, billing_address, amount, currency, issued_at, created_at
		FROM invoices WHERE order_id = ?
	`, orderID).Scan(&inv)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (s *Service) billingProfile(ctx context.Context, accountID snowflake.ID) (string, string) {
	var profile struct {
		Name           string
		BillingAddress string
	}
	res := s.db.WithContext(ctx).Raw(`
		SELECT name, billing_address FROM business_accounts WHERE id = ?
	`, accountID).Scan(&profile)
	if res.Error != nil || res.RowsAffected == 0 {
		return "Account " + accountID.String(), ""
	}
	return profile.Name, profile.BillingAddress
}

// invoiceNumber is derived from the order id and issue month, so retries
// always produce the same number.
func invoiceNumber(orderID snowflake.ID, issuedAt time.Time) string {
	return fmt.Sprintf("EDU-%s-%s", issuedAt.Format("200601"), orderID.String())
}

func formatMinor(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
