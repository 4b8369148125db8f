package httpapi

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

// statusFor maps service errors onto HTTP statuses. Operator-correctable
// errors keep their message; storage failures are reported generically.
func statusFor(err error) int {
	var (
		stockErr    *domain.InsufficientStockError
		payErr      *domain.InsufficientPaymentError
		unavailable *domain.StorageUnavailableError
		failed      *domain.CommitFailedError
	)
	switch {
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &failed):
		return http.StatusInternalServerError
	case errors.As(err, &stockErr):
		return http.StatusConflict
	case errors.As(err, &payErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoOpenSession), errors.Is(err, domain.ErrAlreadyClosed):
		return http.StatusConflict
	case domain.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransaction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError hides storage details from the operator. Failed sale
// writes carry a retryable flag; the cart is left intact so the same sale can
// be submitted again.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		log.Error().Err(err).Int("status", status).Msg("sale storage unavailable")
		w.Header().Set("Retry-After", "5")
		writeJSON(w, status, map[string]any{
			"error":     "could not complete the sale, storage is busy",
			"retryable": true,
		})
	case http.StatusInternalServerError:
		var failed *domain.CommitFailedError
		if !errors.As(err, &failed) {
			writeError(w, status, err)
			return
		}
		log.Error().Err(err).Int("status", status).Msg("sale commit failed")
		writeJSON(w, status, map[string]any{
			"error":     "could not complete the sale",
			"retryable": true,
		})
	default:
		writeError(w, status, err)
	}
}
