package handlers

import (
	"net/http"
	"strconv"

	"replayhub/internal/api/middleware"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/audit"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

type AuditHandler struct {
	logger *audit.Logger
}

func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{logger: logger}
}

// List answers GET /audit?limit=n with the tenant's newest entries.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			errors.Respond(w, errors.Invalid("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	logs, err := h.logger.List(r.Context(), tenant.TenantID, limit)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, logs)
}
