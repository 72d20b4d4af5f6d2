package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/enquira/backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps the engine's failure taxonomy onto HTTP statuses.
// Unknown errors become 500 and are logged; taxonomy errors are the
// caller's problem and are not.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errBody(err))
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err))
	case errors.Is(err, models.ErrInsufficientBalance):
		writeJSON(w, http.StatusPaymentRequired, errBody(err))
	case errors.Is(err, models.ErrDuplicateBid):
		writeJSON(w, http.StatusConflict, errBody(err))
	case errors.Is(err, models.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, errBody(err))
	case errors.Is(err, models.ErrAuctionClosed):
		writeJSON(w, http.StatusGone, errBody(err))
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
