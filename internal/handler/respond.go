package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mealdesk/api/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// minorUnitExp is the exponent of a price's minor unit (cents).
const minorUnitExp = -2

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

func writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.FromCtx(r.Context()).Error(msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// formatAmount renders minor units as a fixed two-decimal string.
func formatAmount(minor int64) string {
	return decimal.New(minor, minorUnitExp).StringFixed(-minorUnitExp)
}
