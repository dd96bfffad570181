package handler

import (
	"encoding/json"
	"net/http"

	"edgegate/internal/audit"
	"edgegate/internal/blacklist"
	"edgegate/internal/identity"
	apperrors "edgegate/pkg/errors"
	"edgegate/pkg/logger"
)

// BlacklistHandler answers reputation lookups and administrative edits to
// the deny-list.
type BlacklistHandler struct {
	store      blacklist.Store
	sink       audit.Sink
	log        *logger.Logger
	failClosed bool
}

// NewBlacklistHandler creates a blacklist check handler
func NewBlacklistHandler(store blacklist.Store, sink audit.Sink, log *logger.Logger, failClosed bool) *BlacklistHandler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &BlacklistHandler{store: store, sink: sink, log: log, failClosed: failClosed}
}

// BlacklistCheckResponse reports whether the caller's IP is denied.
type BlacklistCheckResponse struct {
	Blocked bool   `json:"blocked"`
	IP      string `json:"ip"`
	Reason  string `json:"reason,omitempty"`
}

// Check handles GET /ip-blacklist-check
func (h *BlacklistHandler) Check(w http.ResponseWriter, r *http.Request) {
	ip := identity.FromRequest(r)

	blocked, err := h.store.Contains(r.Context(), ip)
	if err != nil {
		h.log.WithError(err).Error("Blacklist store unreachable")
		if h.failClosed {
			writeAppError(w, h.log, apperrors.NewUnavailableError("Blacklist unavailable", err))
			return
		}
		blocked = false
	}

	result := "allowed"
	if blocked {
		result = "blocked"
	}
	h.sink.Record("IP_BLACKLIST_CHECK", map[string]any{
		"ip":        ip,
		"method":    r.Method,
		"path":      r.URL.Path,
		"userAgent": r.Header.Get("User-Agent"),
		"result":    result,
	})

	if blocked {
		// The listing does not expire on its own; tell clients to back off
		// for a while before re-checking.
		w.Header().Set("Retry-After", "3600")
		writeJSON(w, h.log, http.StatusForbidden, BlacklistCheckResponse{
			Blocked: true,
			IP:      ip,
			Reason:  "IP on blacklist",
		})
		return
	}

	writeJSON(w, h.log, http.StatusOK, BlacklistCheckResponse{Blocked: false, IP: ip})
}

// AdminRequest is the body for deny-list edits.
type AdminRequest struct {
	IP     string `json:"ip"`
	Action string `json:"action"`
}

// Admin handles POST /ip-blacklist-check, adding or removing an entry.
func (h *BlacklistHandler) Admin(w http.ResponseWriter, r *http.Request) {
	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, h.log, apperrors.NewValidationError("invalid payload"))
		return
	}
	if req.IP == "" || (req.Action != "add" && req.Action != "remove") {
		writeAppError(w, h.log, apperrors.NewValidationError("invalid payload"))
		return
	}

	var err error
	if req.Action == "add" {
		err = h.store.Add(r.Context(), req.IP)
	} else {
		err = h.store.Remove(r.Context(), req.IP)
	}
	if err != nil {
		writeAppError(w, h.log, apperrors.NewUnavailableError("Blacklist unavailable", err))
		return
	}

	h.sink.Record("IP_BLACKLIST_ADMIN", map[string]any{
		"ip":     req.IP,
		"action": req.Action,
		"actor":  identity.FromRequest(r),
	})

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"ip":     req.IP,
		"action": req.Action,
	})
}
