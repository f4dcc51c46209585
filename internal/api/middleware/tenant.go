package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	apiContext "replayhub/internal/api/context"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/auth"
	"replayhub/internal/platform/models"
	"replayhub/internal/platform/repositories"
)

type TenantContext struct {
	TenantID int64
	UserID   int64
	Role     string
}

// TenantMiddleware loads the acting user named by the token. The stored
// role wins over the token's, so demotions apply before tokens expire.
type TenantMiddleware struct {
	userRepo *repositories.UserRepository
}

func NewTenantMiddleware(userRepo *repositories.UserRepository) *TenantMiddleware {
	return &TenantMiddleware{userRepo: userRepo}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", claims.UserID).Msg("failed to load user")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load user", nil)
			return
		}
		if user == nil || user.TenantID != claims.TenantID {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User not found", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			TenantID: user.TenantID,
			UserID:   user.UserID,
			Role:     user.Role,
		})
		ctx = context.WithValue(ctx, apiContext.User, user)

		next(w, r.WithContext(ctx))
	}
}

// TenantFrom returns the tenant context installed by TenantMiddleware.
func TenantFrom(ctx context.Context) *TenantContext {
	tenant, _ := ctx.Value(apiContext.Tenant).(*TenantContext)
	return tenant
}

// UserFrom returns the acting user installed by TenantMiddleware.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(apiContext.User).(*models.User)
	return user
}
