package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tahirov/eduadmin-api/database"
	"github.com/tahirov/eduadmin-api/handlers"
	approval_handlers "github.com/tahirov/eduadmin-api/handlers/approval"
	audit_handlers "github.com/tahirov/eduadmin-api/handlers/audit"
	auth_handlers "github.com/tahirov/eduadmin-api/handlers/auth"
	delegation_handlers "github.com/tahirov/eduadmin-api/handlers/delegation"
	institution_handlers "github.com/tahirov/eduadmin-api/handlers/institution"
	notification_handlers "github.com/tahirov/eduadmin-api/handlers/notification"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/utils/auth"
	"github.com/tahirov/eduadmin-api/utils/cache"
	"github.com/tahirov/eduadmin-api/utils/middleware"
)

// Deps carries the wired service graph into route registration
type Deps struct {
	Store         *database.GORMStore
	Cache         *cache.RedisCache // optional
	Tree          *services.TreeService
	Scopes        *services.AccessScopeService
	Filter        *services.ScopeFilter
	Delegations   *services.DelegationService
	Notifications *services.NotificationService
	Approvals     *services.ApprovalService
	Bulk          *services.BulkService
	Audit         *services.AuditService
}

func SetupRoutes(app *fiber.App, deps Deps) {
	// Get JWT secret from environment
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "eduadmin-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db := deps.Store.GetDB()

	// Initialize brute force protection
	var bruteForceProtection *middleware.BruteForceProtection
	if deps.Cache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(deps.Cache)
	}

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	approvalHandler := approval_handlers.NewApprovalHandler(deps.Approvals, deps.Bulk, deps.Audit, deps.Scopes)
	delegationHandler := delegation_handlers.NewDelegationHandler(deps.Delegations)
	institutionHandler := institution_handlers.NewInstitutionHandler(db, deps.Tree, deps.Scopes, deps.Filter)
	notificationHandler := notification_handlers.NewNotificationHandler(deps.Notifications)
	auditHandler := audit_handlers.NewAuditHandler(deps.Audit, deps.Scopes)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(deps.Store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.Me)

	// Approval workflow routes (protected)
	approvals := api.Group("/approvals", authMiddleware.Required())
	approvals.Post("/", approvalHandler.Create)
	approvals.Get("/", approvalHandler.List)
	approvals.Get("/pending", approvalHandler.ListPending)
	approvals.Post("/bulk", approvalHandler.Bulk)
	approvals.Get("/:id", approvalHandler.Get)
	approvals.Get("/:id/trail", approvalHandler.Trail)
	approvals.Post("/:id/submit", approvalHandler.Submit)
	approvals.Post("/:id/approve", approvalHandler.Approve)
	approvals.Post("/:id/reject", approvalHandler.Reject)
	approvals.Post("/:id/return", approvalHandler.Return)
	approvals.Post("/:id/archive", approvalHandler.Archive)

	// Delegation routes (protected, approver roles only)
	delegations := api.Group("/delegations", authMiddleware.Required())
	delegations.Post("/", authMiddleware.RequireRole("regionadmin", "sektoradmin", "schooladmin"), delegationHandler.Create)
	delegations.Get("/", delegationHandler.List)
	delegations.Post("/:id/revoke", delegationHandler.Revoke)

	// Institution routes (protected, scope-filtered)
	institutions := api.Group("/institutions", authMiddleware.Required())
	institutions.Get("/", institutionHandler.List)
	institutions.Get("/:id/subtree", institutionHandler.Subtree)

	// Notification routes (protected)
	notifications := api.Group("/notifications", authMiddleware.Required())
	notifications.Get("/", notificationHandler.List)
	notifications.Post("/:id/read", notificationHandler.MarkRead)

	// Audit routes (protected; bypass log and actor history are superadmin only)
	auditGroup := api.Group("/audit", authMiddleware.Required())
	auditGroup.Get("/bypass-events", auditHandler.BypassEvents)
	auditGroup.Get("/actors/:id/history", authMiddleware.RequireSuperAdmin(), auditHandler.ActorHistory)
}
