package handler

import (
	"encoding/json"
	"net/http"

	apperrors "edgegate/pkg/errors"
	"edgegate/pkg/logger"
)

// writeJSON encodes payload with the given status. Encoding failures are
// logged and otherwise ignored; headers are already on the wire.
func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// writeAppError renders an AppError as a stable JSON error body.
func writeAppError(w http.ResponseWriter, log *logger.Logger, appErr *apperrors.AppError) {
	if log != nil && appErr.Internal != nil {
		log.WithError(appErr).Error("Request failed")
	}
	writeJSON(w, log, appErr.StatusCode, map[string]interface{}{
		"ok":        false,
		"reason":    appErr.Message,
		"errorCode": string(appErr.Type),
	})
}
