package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	apiContext "replayhub/internal/api/context"
	"replayhub/internal/api/middleware"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/audit"
)

var errInvalidBody = errors.Invalid("Invalid request body")

type dataResponse struct {
	Data interface{} `json:"data"`
}

type stateResponse struct {
	State string `json:"state"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeData wraps data in the {"data": ...} envelope.
func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, dataResponse{Data: data})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(param(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Invalid("invalid " + name)
	}
	return id, nil
}

// queryFlag reads a boolean query parameter; absent or unparsable is false.
func queryFlag(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// auditEntry fills the actor and client fields of an audit record from r.
func auditEntry(r *http.Request, action, resourceType string, resourceID int64, meta map[string]interface{}) audit.AuditLog {
	entry := audit.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(resourceID, 10),
		Metadata:     meta,
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if tenant := middleware.TenantFrom(r.Context()); tenant != nil {
		entry.TenantID = tenant.TenantID
		entry.UserID = tenant.UserID
	}
	return entry
}
