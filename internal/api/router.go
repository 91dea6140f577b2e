package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/botforge/miniapp-system/internal/api/handler"
	"github.com/botforge/miniapp-system/internal/api/middleware"
	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/ports"
)

// Deps carries the wired collaborators the router needs. Construction
// happens in main; the router only registers routes and guards.
type Deps struct {
	Log        zerolog.Logger
	DB         *mongo.Database
	RDB        *redis.Client
	Sessions   ports.SessionManager
	Repo       ports.PrincipalRepository
	Roles      ports.RoleAuthority
	CookieName string

	Auth    *handler.AuthHandler
	Webhook *handler.WebhookHandler
	Payment *handler.PaymentHandler
	Admin   *handler.AdminHandler
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("miniapp"))

	sessionMW := middleware.Session(d.Sessions, d.Repo, d.CookieName)

	// --- Auth flows ---
	auth := e.Group("/auth", sessionMW)
	auth.POST("/miniapp", d.Auth.Miniapp)
	auth.POST("/code/start", d.Auth.CodeStart)
	auth.POST("/code/complete", d.Auth.CodeComplete)
	auth.POST("/link/complete", d.Auth.LinkComplete)
	auth.POST("/email/signup", d.Auth.Signup)
	auth.POST("/email/signup/complete", d.Auth.SignupComplete)
	auth.POST("/email/login", d.Auth.Login)
	auth.POST("/email/link", d.Auth.LinkEmail, middleware.RequireSession())
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me, middleware.RequireSession())

	// --- Webhook channels (no session; authenticated by signature) ---
	e.POST("/webhook/bot", d.Webhook.Receive)
	e.POST("/webhook/payment", d.Payment.Receive)

	// --- Role-guarded admin surface ---
	admin := e.Group("/admin", sessionMW)
	admin.GET("/status", d.Admin.Status, middleware.RequireRole(d.Roles, domain.RoleAdmin))
	admin.POST("/roles/sync", d.Admin.SyncRoles, middleware.RequireRole(d.Roles, domain.RoleOwner))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.DB, d.RDB)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
