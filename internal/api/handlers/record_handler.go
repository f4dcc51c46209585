package handlers

import (
	"net/http"

	"replayhub/internal/api/middleware"
	"replayhub/internal/engine/records"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/audit"
)

// RecordHandler serves the assist recordings of a project under
// /projects/:project_id/assist/records.
type RecordHandler struct {
	svc   *records.Service
	audit *audit.Logger
}

func NewRecordHandler(svc *records.Service, auditLogger *audit.Logger) *RecordHandler {
	return &RecordHandler{svc: svc, audit: auditLogger}
}

type recordNameRequest struct {
	Name string `json:"name"`
}

func (h *RecordHandler) Presign(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	projectID, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var req recordNameRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	upload, err := h.svc.Presign(r.Context(), tenant.TenantID, projectID, req.Name)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, upload)
}

func (h *RecordHandler) Save(w http.ResponseWriter, r *http.Request) {
	projectID, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var req records.SaveRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	record, err := h.svc.Save(r.Context(), middleware.UserFrom(r.Context()), projectID, req)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionSave, "assist_record", record.RecordID, map[string]interface{}{
		"projectId": projectID,
		"name":      record.Name,
	}))
	writeData(w, http.StatusOK, record)
}

func (h *RecordHandler) Search(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	projectID, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var req records.SearchRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	list, err := h.svc.Search(r.Context(), tenant.TenantID, projectID, req)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	projectID, recordID, err := recordParams(r)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	record, err := h.svc.Get(r.Context(), tenant.TenantID, projectID, recordID)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, record)
}

func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	projectID, recordID, err := recordParams(r)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var req recordNameRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	record, err := h.svc.Update(r.Context(), tenant.TenantID, projectID, recordID, req.Name)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionUpdate, "assist_record", recordID, map[string]interface{}{"name": record.Name}))
	writeData(w, http.StatusOK, record)
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	projectID, recordID, err := recordParams(r)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	if _, err := h.svc.Delete(r.Context(), tenant.TenantID, projectID, recordID); err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionDelete, "assist_record", recordID, nil))
	writeData(w, http.StatusOK, stateResponse{State: "success"})
}

func recordParams(r *http.Request) (int64, int64, error) {
	projectID, err := idParam(r, "project_id")
	if err != nil {
		return 0, 0, err
	}
	recordID, err := idParam(r, "record_id")
	if err != nil {
		return 0, 0, err
	}
	return projectID, recordID, nil
}
