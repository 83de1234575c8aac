package app

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tahirov/eduadmin-api/api"
	"github.com/tahirov/eduadmin-api/config"
	"github.com/tahirov/eduadmin-api/database"
	"github.com/tahirov/eduadmin-api/router"
	"github.com/tahirov/eduadmin-api/services"
	"github.com/tahirov/eduadmin-api/services/cron"
	"github.com/tahirov/eduadmin-api/utils/cache"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	db := store.GetDB()

	// Redis cache for scope resolution and brute force protection.
	// The service graph degrades gracefully without it.
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Scope caching and brute force protection are disabled.", err)
		redisCache = nil
	}

	// Wire the service graph
	treeService := services.NewTreeService(db)
	scopeService := services.NewAccessScopeService(treeService, redisCache)
	scopeFilter := services.NewScopeFilter(db)
	delegationService := services.NewDelegationService(db, treeService, scopeService)
	notificationService := services.NewNotificationService(db, delegationService)
	approvalService := services.NewApprovalService(db, scopeFilter, scopeService, delegationService, notificationService)
	bulkService := services.NewBulkService(db, approvalService)
	auditService := services.NewAuditService(db, scopeFilter)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(db, scopeFilter, scopeService, delegationService, notificationService)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if redisCache != nil {
			redisCache.Close()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	// Custom Logger
	app.Use(logger.New())

	app.Use(recover.New())

	// Setup Routes
	router.SetupRoutes(app, router.Deps{
		Store:         store,
		Cache:         redisCache,
		Tree:          treeService,
		Scopes:        scopeService,
		Filter:        scopeFilter,
		Delegations:   delegationService,
		Notifications: notificationService,
		Approvals:     approvalService,
		Bulk:          bulkService,
		Audit:         auditService,
	})

	// Get the PORT & Start the Server
	return server.Run()

}
