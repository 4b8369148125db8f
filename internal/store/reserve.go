package store

import (
	"context"
	"sort"

	"vivero/backend/internal/domain"
)

// ReserveStock checks live stock for every line and then decrements it
// through cat, which must be bound to the caller's transaction. Products are
// visited in id order so concurrent commits lock rows in the same order. If
// any product is short nothing is decremented.
func ReserveStock(ctx context.Context, cat ProductCatalog, lines []domain.SaleLine) error {
	need := make(map[string]int, len(lines))
	for _, line := range lines {
		need[line.ProductID] += line.Quantity
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		available, err := cat.GetStock(ctx, id)
		if err != nil {
			return err
		}
		if need[id] > available {
			return &domain.InsufficientStockError{ProductID: id, Requested: need[id], Available: available}
		}
	}
	for _, id := range ids {
		if err := cat.DecrementStock(ctx, id, need[id]); err != nil {
			return err
		}
	}
	return nil
}
