package transport

import (
	"errors"
	"net/http"

	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/repository"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest represents a partial profile update. Omitted fields
// keep their prior value.
type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

// TokenResponse carries an issued bearer token
type TokenResponse struct {
	Token string `json:"token"`
}

// ProfileResponse carries the public profile fields. The password hash is
// never serialized.
type ProfileResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// MessageResponse carries a plain confirmation message
type MessageResponse struct {
	Message string `json:"message"`
}

// UserHandler handles HTTP requests for account operations
type UserHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(authService service.AuthService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRoutes registers account routes. The same routes are mounted under
// /api/auth and /api/user; both prefixes are part of the observed contract.
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	for _, prefix := range []string{"/api/auth", "/api/user"} {
		r.Route(prefix, func(r chi.Router) {
			// Public routes
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpdateProfile)
				r.Delete("/profile", h.DeleteProfile)
			})
		})
	}
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			middleware.RespondWithError(w, http.StatusBadRequest, "Email already in use")
			return
		}

		h.logger.Error("Registration failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	h.logger.Info("User registered successfully", zap.String("email", req.Email))
	middleware.RespondWithJSON(w, http.StatusCreated, TokenResponse{Token: token})
}

// Login handles user authentication
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password fail with distinct messages
		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusBadRequest, "User not found")
			return
		}
		if errors.Is(err, service.ErrInvalidPassword) {
			middleware.RespondWithError(w, http.StatusBadRequest, "Invalid password")
			return
		}

		h.logger.Error("Login failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// GetProfile returns the authenticated user's profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, middleware.AuthFailedMessage)
		return
	}

	user, err := h.authService.GetProfile(r.Context(), userID)
	if err != nil {
		// A valid token may outlive its account; that is a 404, not 401
		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}

		h.logger.Error("Failed to get user profile", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get user profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProfileResponse{
		Username: user.Username,
		Email:    user.Email,
	})
}

// UpdateProfile applies a partial update to the authenticated user's profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, middleware.AuthFailedMessage)
		return
	}

	var req UpdateProfileRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Profile update validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		if errors.Is(err, repository.ErrEmailTaken) {
			middleware.RespondWithError(w, http.StatusBadRequest, "Email already in use")
			return
		}

		h.logger.Error("Failed to update user profile", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update user profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProfileResponse{
		Username: user.Username,
		Email:    user.Email,
	})
}

// DeleteProfile deletes the authenticated user's account
func (h *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, middleware.AuthFailedMessage)
		return
	}

	if err := h.authService.DeleteProfile(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}

		h.logger.Error("Failed to delete user profile", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete user profile")
		return
	}

	h.logger.Info("User deleted", zap.Int64("user_id", userID))
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "User deleted"})
}
