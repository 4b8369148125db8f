package ticket

import (
	"context"

	"github.com/rs/zerolog"
)

type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "ticket").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, t Ticket) error {
	n.logger.Info().
		Str("sale_number", t.SaleNumber).
		Str("register_id", t.RegisterID).
		Str("cashier", t.CashierName).
		Int("lines", len(t.Lines)).
		Int64("total", t.Total).
		Int64("change_due", t.ChangeDue).
		Msg("ticket ready")
	return nil
}
