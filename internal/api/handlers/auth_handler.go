package handlers

import (
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"replayhub/internal/pkg/errors"
	"replayhub/internal/pkg/validator"
	"replayhub/internal/platform/auth"
	"replayhub/internal/platform/models"
	"replayhub/internal/platform/repositories"
)

var (
	errInvalidCredentials = errors.Unauthorized("Invalid credentials")
	errInvalidRefresh     = errors.Unauthorized("Invalid refresh token")
)

type AuthHandler struct {
	userRepo *repositories.UserRepository
	tokenSvc *auth.TokenService
}

func NewAuthHandler(userRepo *repositories.UserRepository, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		tokenSvc: tokenSvc,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		errors.Respond(w, errInvalidCredentials)
		return
	}

	user, err := h.userRepo.GetByEmail(r.Context(), email)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	if user == nil || user.PasswordHash == "" {
		errors.Respond(w, errInvalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		errors.Respond(w, errInvalidCredentials)
		return
	}

	accessToken, err := h.tokenSvc.GenerateAccessToken(user.UserID, user.TenantID, user.Role, user.Email)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	refreshToken, err := h.tokenSvc.GenerateRefreshToken(user.UserID)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// Refresh issues a new access token from a refresh token. The user is read
// again so role changes take effect.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decode(r, &req); err != nil {
		errors.Respond(w, err)
		return
	}

	subject, err := h.tokenSvc.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		errors.Respond(w, errInvalidRefresh)
		return
	}
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		errors.Respond(w, errInvalidRefresh)
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		errors.Respond(w, err)
		return
	}
	if user == nil {
		errors.Respond(w, errors.Unauthorized("User not found"))
		return
	}

	accessToken, err := h.tokenSvc.GenerateAccessToken(user.UserID, user.TenantID, user.Role, user.Email)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{AccessToken: accessToken})
}
