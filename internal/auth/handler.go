package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/wheels-api/internal/httputil"
	"github.com/redmonkez12/wheels-api/internal/logging"
	"github.com/redmonkez12/wheels-api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Contact         string `json:"contact"`
	Address         string `json:"address"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh and logout request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse carries the session next to the usual envelope fields
type LoginResponse struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message"`
	Data         *user.User `json:"data"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    int64      `json:"expiresIn"`
}

// Signup handles account registration
// @Summary      Register a new account
// @Description  Create a user account. The role is always "user".
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup form"
// @Success      201 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Invalid request or validation error"
// @Failure      409 {object} httputil.Response "Email already exists"
// @Failure      429 {object} httputil.Response "Too many requests"
// @Router       /api/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SignupRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	newUser, err := h.service.Signup(r.Context(), SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Contact:         req.Contact,
		Address:         req.Address,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			logger.Warn("signup failed: validation error", "field", verr.Field)
			code := httputil.CodeValidationFailed
			if verr.Field == "confirmPassword" {
				code = httputil.CodePasswordMismatch
			}
			httputil.RespondErrorWithCode(w, verr.Message, code, http.StatusBadRequest)
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("signup failed: email already exists")
			httputil.RespondErrorWithCode(w, "Email already in use", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		default:
			logger.Error("signup failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)
	httputil.RespondSuccess(w, "User created successfully", newUser, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate and receive a bearer access token and a refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.Response "Invalid request body"
// @Failure      401 {object} httputil.Response "Invalid credentials"
// @Failure      429 {object} httputil.Response "Too many requests"
// @Router       /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", u.ID)

	httputil.RespondJSON(w, LoginResponse{
		Success:      true,
		Message:      "Login successful",
		Data:         u,
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	}, http.StatusOK)
}

// Me returns the authenticated account
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Response
// @Failure      401 {object} httputil.Response "Unauthorized"
// @Failure      404 {object} httputil.Response "Account no longer exists"
// @Router       /api/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to load current user", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondSuccess(w, "", u, http.StatusOK)
}

// Refresh handles access token refresh
// @Summary      Refresh access token
// @Description  Rotate a refresh token into a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest true "Refresh token"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Refresh token missing"
// @Failure      401 {object} httputil.Response "Invalid or expired refresh token"
// @Router       /api/auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RefreshRequest
	_ = httputil.DecodeJSON(w, r, &req)

	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		logger.Warn("refresh token missing from request body")
		httputil.RespondErrorWithCode(w, "refresh token required", httputil.CodeRefreshTokenMissing, http.StatusBadRequest)
		return
	}

	tokens, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			logger.Warn("token refresh failed: invalid or expired token", "error", err.Error())
			httputil.RespondErrorWithCode(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
			return
		}
		logger.Error("token refresh failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("access token refreshed successfully")
	httputil.RespondSuccess(w, "Token refreshed", tokens, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Revoke the given refresh token. Always succeeds.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token"
// @Success      200 {object} httputil.Response
// @Router       /api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RefreshRequest
	_ = httputil.DecodeJSON(w, r, &req)

	if refreshToken := strings.TrimSpace(req.RefreshToken); refreshToken != "" {
		if err := h.service.RevokeRefreshToken(r.Context(), refreshToken); err != nil {
			logger.Warn("failed to revoke refresh token", "error", err)
		}
	}

	logger.Info("user logged out successfully")
	httputil.RespondSuccess(w, "Logged out", nil, http.StatusOK)
}
