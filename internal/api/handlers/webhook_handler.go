package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"replayhub/internal/api/middleware"
	"replayhub/internal/engine/webhooks"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/audit"
	"replayhub/internal/platform/models"
)

type WebhookHandler struct {
	registry   *webhooks.Registry
	dispatcher *webhooks.Dispatcher
	audit      *audit.Logger
}

func NewWebhookHandler(registry *webhooks.Registry, dispatcher *webhooks.Dispatcher, auditLogger *audit.Logger) *WebhookHandler {
	return &WebhookHandler{registry: registry, dispatcher: dispatcher, audit: auditLogger}
}

type webhookUpdateRequest struct {
	Endpoint   string  `json:"endpoint"`
	AuthHeader *string `json:"authHeader"`
	Name       string  `json:"name"`
	Index      *int    `json:"index"`
}

type triggerResponse struct {
	State  string `json:"state"`
	Events int    `json:"events"`
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())

	list, err := h.registry.ListByTenant(r.Context(), tenant.TenantID)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

// ListByType answers GET /integrations/:type/webhooks.
func (h *WebhookHandler) ListByType(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())

	list, err := h.registry.ListByType(r.Context(), tenant.TenantID, param(r, "type"))
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "webhook_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}

	webhook, err := h.registry.Get(r.Context(), tenant.TenantID, id, models.TypeWebhook)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, webhook)
}

// AddEdit answers POST /webhooks: an update when the body names a
// webhookId, a registration otherwise.
func (h *WebhookHandler) AddEdit(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	var req webhooks.AddEditRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	webhook, err := h.registry.AddEdit(r.Context(), tenant.TenantID, req)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	action := audit.ActionCreate
	if req.WebhookID != nil {
		action = audit.ActionUpdate
	}
	h.audit.Log(auditEntry(r, action, "webhook", webhook.WebhookID, map[string]interface{}{"name": webhook.Name}))
	writeData(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "webhook_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var req webhookUpdateRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	webhook, err := h.registry.Update(r.Context(), tenant.TenantID, id, webhooks.Changes{
		Endpoint:   req.Endpoint,
		AuthHeader: req.AuthHeader,
		Name:       req.Name,
		Index:      req.Index,
	})
	if err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionUpdate, "webhook", id, map[string]interface{}{"name": webhook.Name}))
	writeData(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "webhook_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}

	if err := h.registry.SoftDelete(r.Context(), tenant.TenantID, id); err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionDelete, "webhook", id, nil))
	writeData(w, http.StatusOK, stateResponse{State: "success"})
}

// Trigger delivers a batch of notifications synchronously. Delivery
// failures are logged by the dispatcher and never change the response.
// Destinations owned by another tenant are dropped.
func (h *WebhookHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	var batch []models.Notification
	if err := decode(r, &batch); err != nil {
		errors.Respond(w, err)
		return
	}

	h.dispatcher.DeliverBatch(r.Context(), h.ownBatch(r, tenant.TenantID, batch))

	writeData(w, http.StatusAccepted, triggerResponse{State: "accepted", Events: len(batch)})
}

// ownBatch keeps the notifications addressed to tenant's webhooks.
func (h *WebhookHandler) ownBatch(r *http.Request, tenantID int64, batch []models.Notification) []models.Notification {
	owned := make(map[int64]bool)
	for _, n := range batch {
		if _, seen := owned[n.Destination]; seen {
			continue
		}
		_, err := h.registry.Get(r.Context(), tenantID, n.Destination, models.TypeWebhook)
		owned[n.Destination] = err == nil
		if err != nil {
			log.Warn().Err(err).Int64("tenant_id", tenantID).Int64("webhook_id", n.Destination).Msg("dropping notification for unknown destination")
		}
	}

	kept := make([]models.Notification, 0, len(batch))
	for _, n := range batch {
		if owned[n.Destination] {
			kept = append(kept, n)
		}
	}
	return kept
}
