package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	apiContext "replayhub/internal/api/context"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/auth"
)

var (
	errMissingToken = errors.Unauthorized("Missing authorization header")
	errTokenFormat  = errors.Unauthorized("Invalid authorization header format")
	errBadToken     = errors.Unauthorized("Invalid or expired token")
)

// AuthMiddleware accepts access tokens only. Refresh tokens carry no user
// claims and are rejected here.
type AuthMiddleware struct {
	tokenSvc *auth.TokenService
}

func NewAuthMiddleware(tokenSvc *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errMissingToken
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", errTokenFormat
	}
	return fields[1], nil
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="replayhub"`)
			errors.Respond(w, err)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(token)
		if err == nil && claims.UserID == 0 {
			err = errBadToken
		}
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="replayhub", error="invalid_token"`)
			errors.Respond(w, errBadToken)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}
