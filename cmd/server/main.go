package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	approvalmodel "github.com/OpenPMS/pms/internal/approval/model"
	approvalrouter "github.com/OpenPMS/pms/internal/approval/router"
	apprsvc "github.com/OpenPMS/pms/internal/approval/service"
	"github.com/OpenPMS/pms/internal/attachments"
	"github.com/OpenPMS/pms/internal/auth"
	"github.com/OpenPMS/pms/internal/config"
	"github.com/OpenPMS/pms/internal/database"
	"github.com/OpenPMS/pms/internal/middleware"
	"github.com/OpenPMS/pms/internal/model"
	propertymodel "github.com/OpenPMS/pms/internal/property/model"
	propertyrouter "github.com/OpenPMS/pms/internal/property/router"
	propsvc "github.com/OpenPMS/pms/internal/property/service"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog.Info("configuration loaded successfully",
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"db_sslmode", cfg.Database.SSLMode,
		"storage_type", cfg.Storage.Type,
		"server_port", cfg.Server.Port,
	)

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if err := database.HealthCheck(db); err != nil {
		log.Fatalf("database health check failed: %v", err)
	}

	if err := migrate(db); err != nil {
		log.Fatalf("failed to run database migrations: %v", err)
	}

	// Initialize attachment storage
	storage, err := attachments.NewStorageFromConfig(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize attachment storage: %v", err)
	}

	// Wire up the approval workflow core
	requestRepo := apprsvc.NewRequestRepository(db)
	stateMachine := apprsvc.NewRequestStateMachine(requestRepo)
	syncRegistry := apprsvc.NewSyncRegistry()
	templateService := apprsvc.NewTemplateService(db)
	requestService := apprsvc.NewRequestService(db, requestRepo, stateMachine, syncRegistry)
	responseService := apprsvc.NewResponseService(db, requestRepo, stateMachine, syncRegistry)

	// Property registry and governed transactions
	propertyService := propsvc.NewPropertyService(db)
	movementService := propsvc.NewMovementService(db)
	releaseService := propsvc.NewReleaseService(db, propertyService, movementService, templateService, requestService)
	turnoverService := propsvc.NewTurnoverService(db, propertyService, movementService, templateService, requestService)
	returnService := propsvc.NewReturnService(db, propertyService, movementService, templateService, requestService)

	// Every status change of a request reaches its entity through the registry
	syncRegistry.Register(approvalmodel.EntityTypePropertyRelease, releaseService.Synchronizer())
	syncRegistry.Register(approvalmodel.EntityTypePropertyTurnover, turnoverService.Synchronizer())
	syncRegistry.Register(approvalmodel.EntityTypePropertyReturn, returnService.Synchronizer())

	attachmentService := attachments.NewAttachmentService(db, storage)
	authService := auth.NewAuthService(db)

	// Set up HTTP routes
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(&cfg.CORS))
	engine.Use(auth.Middleware(authService))

	engine.GET("/healthz", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	approvalrouter.NewApprovalRouter(requestService, responseService, templateService).Register(api)
	propertyrouter.NewPropertyRouter(propertyService, movementService, releaseService, turnoverService, returnService).Register(api)
	attachments.NewHandler(attachmentService).Register(api)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	// Wait for interrupt signal
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}

	slog.Info("server stopped")
}

// migrate keeps the schema in sync with the models on startup.
func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Role{},
		&model.BusinessUnit{},
		&model.User{},
		&approvalmodel.WorkflowTemplate{},
		&approvalmodel.ApprovalStep{},
		&approvalmodel.ApprovalRequest{},
		&approvalmodel.ApprovalResponse{},
		&propertymodel.Property{},
		&propertymodel.PropertyMovement{},
		&propertymodel.PropertyRelease{},
		&propertymodel.PropertyTurnover{},
		&propertymodel.PropertyReturn{},
		&attachments.Attachment{},
	)
}
