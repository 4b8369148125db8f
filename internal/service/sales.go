package service

import (
	"context"
	"strings"
	"time"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

const dateLayout = "2006-01-02"

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// DailySales lists the completed sales committed on date with their totals.
// The day runs midnight to midnight in the store's location; an empty date
// means today there.
func (s *Service) DailySales(ctx context.Context, date string) (domain.DailySales, error) {
	from, err := s.parseDay(date)
	if err != nil {
		return domain.DailySales{}, err
	}
	sales, err := s.repo.ListSalesBetween(ctx, from, from.AddDate(0, 0, 1), 0)
	if err != nil {
		return domain.DailySales{}, err
	}

	report := domain.DailySales{Date: from.Format(dateLayout), Sales: make([]domain.Sale, 0, len(sales))}
	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		report.SaleCount++
		report.Subtotal += sale.Subtotal
		report.Discount += sale.Discount
		report.Total += sale.Total
		report.Sales = append(report.Sales, sale)
	}
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	// Without a date the window is the last 24 hours up to now.
	if strings.TrimSpace(date) == "" {
		now := s.now()
		return s.repo.ListAuditLogs(ctx, now.Add(-24*time.Hour), now.Add(time.Second), limit)
	}
	from, err := s.parseDay(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, from.AddDate(0, 0, 1), limit)
}

// parseDay returns local midnight of date in the store's location.
func (s *Service) parseDay(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		now := s.now().In(s.location)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location), nil
	}
	parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), s.location)
	if err != nil {
		return time.Time{}, store.ErrInvalidTransaction
	}
	return parsed, nil
}
