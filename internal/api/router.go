package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "replayhub/internal/api/context"
	"replayhub/internal/api/handlers"
	"replayhub/internal/api/middleware"
	"replayhub/internal/pkg/errors"
)

type Dependencies struct {
	AuthHandler      *handlers.AuthHandler
	ProjectHandler   *handlers.ProjectHandler
	RecordHandler    *handlers.RecordHandler
	WebhookHandler   *handlers.WebhookHandler
	AuditHandler     *handlers.AuditHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	RateLimiter      *middleware.RateLimiter
}

// NewRouter registers every route and wraps the router with request logging
// and panic recovery.
func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Authentication routes
	authLimit := deps.RateLimiter.Limit(middleware.LimitWrite)
	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, authLimit))
	router.POST("/api/v1/auth/refresh", chain(deps.AuthHandler.Refresh, authLimit))

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware
	read := deps.RateLimiter.Limit(middleware.LimitRead)
	write := deps.RateLimiter.Limit(middleware.LimitWrite)
	admin := requireRole("admin", "owner")

	// Projects
	projects := deps.ProjectHandler
	router.GET("/api/v1/projects",
		chain(projects.List, authMid.Handle, tenantMid.Handle, read))
	router.POST("/api/v1/projects",
		chain(projects.Create, authMid.Handle, tenantMid.Handle, write))
	router.GET("/api/v1/projects/:project_id",
		chain(projects.Get, authMid.Handle, tenantMid.Handle, read))
	router.PUT("/api/v1/projects/:project_id",
		chain(projects.Edit, authMid.Handle, tenantMid.Handle, write))
	router.DELETE("/api/v1/projects/:project_id",
		chain(projects.Delete, authMid.Handle, tenantMid.Handle, write))
	router.GET("/api/v1/project-keys/:project_key",
		chain(projects.GetByKey, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/projects/:project_id/gdpr",
		chain(projects.GetGDPR, authMid.Handle, tenantMid.Handle, read))
	router.POST("/api/v1/projects/:project_id/gdpr",
		chain(projects.EditGDPR, authMid.Handle, tenantMid.Handle, admin, write))
	router.GET("/api/v1/projects/:project_id/capture",
		chain(projects.GetCapture, authMid.Handle, tenantMid.Handle, read))
	router.POST("/api/v1/projects/:project_id/capture",
		chain(projects.UpdateCapture, authMid.Handle, tenantMid.Handle, admin, write))

	// Assist recordings
	records := deps.RecordHandler
	router.POST("/api/v1/projects/:project_id/assist/records/presign",
		chain(records.Presign, authMid.Handle, tenantMid.Handle, write))
	router.POST("/api/v1/projects/:project_id/assist/records",
		chain(records.Save, authMid.Handle, tenantMid.Handle, admin, write))
	router.POST("/api/v1/projects/:project_id/assist/records/search",
		chain(records.Search, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/projects/:project_id/assist/records/:record_id",
		chain(records.Get, authMid.Handle, tenantMid.Handle, read))
	router.PUT("/api/v1/projects/:project_id/assist/records/:record_id",
		chain(records.Update, authMid.Handle, tenantMid.Handle, admin, write))
	router.DELETE("/api/v1/projects/:project_id/assist/records/:record_id",
		chain(records.Delete, authMid.Handle, tenantMid.Handle, admin, write))

	// Webhooks
	webhooks := deps.WebhookHandler
	router.GET("/api/v1/webhooks",
		chain(webhooks.List, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(webhooks.Get, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/integrations/:type/webhooks",
		chain(webhooks.ListByType, authMid.Handle, tenantMid.Handle, read))
	router.POST("/api/v1/webhooks",
		chain(webhooks.AddEdit, authMid.Handle, tenantMid.Handle, admin, write))
	router.PUT("/api/v1/webhooks/:webhook_id",
		chain(webhooks.Update, authMid.Handle, tenantMid.Handle, admin, write))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(webhooks.Delete, authMid.Handle, tenantMid.Handle, admin, write))
	router.POST("/api/v1/webhooks/trigger",
		chain(webhooks.Trigger, authMid.Handle, tenantMid.Handle, admin, write))

	// Audit trail
	router.GET("/api/v1/audit",
		chain(deps.AuditHandler.List, authMid.Handle, tenantMid.Handle, admin, read))

	return middleware.Logger(middleware.Recovery(router))
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

// requireRole checks the stored role loaded by TenantMiddleware, so it must
// run after it.
func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tenant := middleware.TenantFrom(r.Context())

			allowed := false
			for _, role := range roles {
				if tenant != nil && tenant.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
