package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/wheels-api/internal/auth"
	"github.com/redmonkez12/wheels-api/internal/config"
	"github.com/redmonkez12/wheels-api/internal/httputil"
	"github.com/redmonkez12/wheels-api/internal/logging"
	"github.com/redmonkez12/wheels-api/internal/ratelimit"
	"github.com/redmonkez12/wheels-api/internal/recovery"
)

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Auth     *auth.Handler
	Recovery *recovery.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(
	cfg *config.Config,
	handlers Handlers,
	authMiddleware *auth.Middleware,
	limiter ratelimit.Checker,
	logger *logging.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	limited := func(purpose string) func(http.Handler) http.Handler {
		return ratelimit.Middleware(limiter, purpose)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(limited(ratelimit.PurposeSignup)).Post("/signup", handlers.Auth.Signup)
		r.With(limited(ratelimit.PurposeLogin)).Post("/login", handlers.Auth.Login)
		r.Post("/refresh", handlers.Auth.Refresh)
		r.Post("/logout", handlers.Auth.Logout)

		r.With(limited(ratelimit.PurposeForgotPassword)).Post("/forgot-password", handlers.Recovery.ForgotPassword)
		r.With(limited(ratelimit.PurposeVerifyResetCode)).Post("/verify-reset-code", handlers.Recovery.VerifyResetCode)
		r.Post("/reset-password", handlers.Recovery.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/me", handlers.Auth.Me)
			r.Post("/change-password", handlers.Recovery.ChangePassword)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondErrorWithCode(w, "route not found", httputil.CodeNotFound, http.StatusNotFound)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
