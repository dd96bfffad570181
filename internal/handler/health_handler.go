package handler

import (
	"net/http"
	"time"

	"edgegate/pkg/logger"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	log *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(log *logger.Logger) *HealthHandler {
	return &HealthHandler{log: log}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

// Check handles GET /health and GET /status
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   "edgegate",
	})
}
