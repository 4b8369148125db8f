// Package ticket carries finalized sales to receipt renderers. Rendering
// itself happens elsewhere; this package fixes the payload and delivery.
package ticket

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"vivero/backend/internal/domain"
)

type Line struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type Ticket struct {
	SaleID         string    `json:"sale_id"`
	SaleNumber     string    `json:"sale_number"`
	RegisterID     string    `json:"register_id"`
	CashierID      string    `json:"cashier_id"`
	CashierName    string    `json:"cashier_name"`
	CustomerID     string    `json:"customer_id,omitempty"`
	PaymentMethod  string    `json:"payment_method"`
	CommittedAt    time.Time `json:"committed_at"`
	Lines          []Line    `json:"lines"`
	Subtotal       int64     `json:"subtotal"`
	Discount       int64     `json:"discount"`
	Total          int64     `json:"total"`
	AmountTendered int64     `json:"amount_tendered"`
	ChangeDue      int64     `json:"change_due"`
}

// Build snapshots a committed sale. cashierName falls back to the cashier id.
func Build(sale domain.Sale, cashierName string) Ticket {
	if cashierName == "" {
		cashierName = sale.CashierID
	}
	lines := make([]Line, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		lines = append(lines, Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return Ticket{
		SaleID:         sale.ID,
		SaleNumber:     sale.SaleNumber,
		RegisterID:     sale.RegisterID,
		CashierID:      sale.CashierID,
		CashierName:    cashierName,
		CustomerID:     sale.CustomerID,
		PaymentMethod:  sale.PaymentMethod,
		CommittedAt:    sale.CommittedAt,
		Lines:          lines,
		Subtotal:       sale.Subtotal,
		Discount:       sale.Discount,
		Total:          sale.Total,
		AmountTendered: sale.AmountTendered,
		ChangeDue:      sale.ChangeDue,
	}
}

type Notifier interface {
	Notify(ctx context.Context, t Ticket) error
}

// Multi delivers to every notifier concurrently and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Ticket) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range m {
		g.Go(func() error {
			return n.Notify(gctx, t)
		})
	}
	return g.Wait()
}
