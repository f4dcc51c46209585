package handlers

import (
	"net/http"

	"replayhub/internal/api/middleware"
	"replayhub/internal/engine/projects"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/audit"
	"replayhub/internal/platform/models"
)

type ProjectHandler struct {
	svc   *projects.Service
	audit *audit.Logger
}

func NewProjectHandler(svc *projects.Service, auditLogger *audit.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, audit: auditLogger}
}

type projectNameRequest struct {
	Name string `json:"name"`
}

type projectEditResponse struct {
	ProjectID int64       `json:"projectId"`
	Name      string      `json:"name"`
	GDPR      models.GDPR `json:"gdpr"`
}

// List answers GET /projects?recordingState=&gdpr=&recorded=.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())

	list, err := h.svc.List(r.Context(), tenant.TenantID, projects.ListOptions{
		RecordingState: queryFlag(r, "recordingState"),
		GDPR:           queryFlag(r, "gdpr"),
		Recorded:       queryFlag(r, "recorded"),
	})
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectNameRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	project, err := h.svc.Create(r.Context(), middleware.UserFrom(r.Context()), req.Name)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionCreate, "project", project.ProjectID, map[string]interface{}{"name": project.Name}))
	writeData(w, http.StatusOK, project)
}

// Get answers GET /projects/:project_id?lastSession=&gdpr=.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}

	project, err := h.svc.Get(r.Context(), tenant.TenantID, id, getOptions(r))
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func (h *ProjectHandler) GetByKey(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())

	project, err := h.svc.GetByKey(r.Context(), tenant.TenantID, param(r, "project_key"), getOptions(r))
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func getOptions(r *http.Request) projects.GetOptions {
	return projects.GetOptions{
		IncludeLastSession: queryFlag(r, "lastSession"),
		IncludeGDPR:        queryFlag(r, "gdpr"),
	}
}

func (h *ProjectHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var req projectNameRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	project, err := h.svc.Edit(r.Context(), middleware.UserFrom(r.Context()), id, req.Name)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionUpdate, "project", id, map[string]interface{}{"name": project.Name}))
	writeData(w, http.StatusOK, projectEditResponse{
		ProjectID: project.ProjectID,
		Name:      project.Name,
		GDPR:      project.GDPR,
	})
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), middleware.UserFrom(r.Context()), id); err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionDelete, "project", id, nil))
	writeData(w, http.StatusOK, stateResponse{State: "success"})
}

// gdprWithID returns a copy of gdpr carrying the project id.
func gdprWithID(gdpr models.GDPR, id int64) models.GDPR {
	return gdpr.Merge(models.GDPR{"projectId": id})
}

func (h *ProjectHandler) GetGDPR(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}

	gdpr, err := h.svc.GetGDPR(r.Context(), tenant.TenantID, id)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, gdprWithID(gdpr, id))
}

func (h *ProjectHandler) EditGDPR(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var patch models.GDPR
	if err := decode(r, &patch); err != nil {
		errors.Respond(w, err)
		return
	}
	delete(patch, "projectId")

	gdpr, err := h.svc.EditGDPR(r.Context(), tenant.TenantID, id, patch)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionUpdate, "project_gdpr", id, patch))
	writeData(w, http.StatusOK, gdprWithID(gdpr, id))
}

func (h *ProjectHandler) GetCapture(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}

	status, err := h.svc.GetCaptureStatus(r.Context(), tenant.TenantID, id)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	writeData(w, http.StatusOK, status)
}

func (h *ProjectHandler) UpdateCapture(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFrom(r.Context())
	id, err := idParam(r, "project_id")
	if err != nil {
		errors.Respond(w, err)
		return
	}
	var req projects.CaptureUpdate
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	status, err := h.svc.UpdateCaptureStatus(r.Context(), tenant.TenantID, id, req)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	h.audit.Log(auditEntry(r, audit.ActionUpdate, "project_capture", id, map[string]interface{}{"rate": status.Rate}))
	writeData(w, http.StatusOK, status)
}
