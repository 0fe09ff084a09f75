// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/kanbanflow/kanbanflow/internal/api/errors"
	"github.com/kanbanflow/kanbanflow/internal/api/middleware"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store       store.Store
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(st store.Store, authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:       st,
		authService: authSvc,
		logger:      logger,
	}
}

// Signup handles account registration.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}

	var v apierrors.ValidationErrors
	if strings.TrimSpace(req.Name) == "" {
		v.Add("name", "Name is required")
	}
	if !validEmail(req.Email) {
		v.Add("email", "A valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		v.Add("password", "Password must be at least 8 characters")
	}
	if v.HasErrors() {
		WriteError(w, v.ToAPIError())
		return
	}

	ctx := r.Context()

	existing, err := h.store.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		h.logger.Error("failed to check email", "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if existing != nil {
		WriteError(w, apierrors.NewDuplicateError("Email already registered"))
		return
	}

	user, err := h.store.Users().Create(ctx, strings.TrimSpace(req.Name), req.Email, req.Password)
	if err != nil {
		// Two signups can race past the lookup above; the unique index
		// settles it.
		if errors.Is(err, store.ErrDuplicateEmail) {
			WriteError(w, apierrors.NewDuplicateError("Email already registered"))
			return
		}
		h.logger.Error("failed to create user", "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to create user"))
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to generate token"))
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  user.Profile(),
	})
}

// Login handles user login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, apierrors.NewValidationError("Email and password are required"))
		return
	}

	user, err := h.store.Users().Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteError(w, apierrors.NewUnauthorizedError("Invalid credentials"))
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to generate token"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user.Profile(),
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.store.Users().GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load user", "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if user == nil {
		WriteError(w, apierrors.NewNotFoundError("User not found"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": user.Profile()})
}
