package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/cache"
	"github.com/taleemhub/monitoring-service/internal/events"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	// OverdueSweepSchedule is the cron expression for the overdue sweeper.
	OverdueSweepSchedule string

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db             *gorm.DB
	repo           repositories.Repository
	redisClient    *redis.Client
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
	config         ServiceManagerConfig

	// Service instances
	requestService      RequestService
	directoryService    DirectoryService
	exportService       ExportService
	notificationService NotificationService
	queryService        QueryService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	redisClient *redis.Client,
	eventPublisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
	config ServiceManagerConfig,
) ServiceManager {
	return &serviceManager{
		db:             db,
		repo:           repo,
		redisClient:    redisClient,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      validator,
		config:         config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	redisClient *redis.Client,
	eventPublisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging:   false,
		LogLevel:             slog.LevelInfo,
		OverdueSweepSchedule: "*/10 * * * *",
		DefaultTimeout:       30 * time.Second,
	}

	return NewServiceManager(db, repo, redisClient, eventPublisher, logger, validator, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	idempotency := newIdempotencyGuard(cache.NewCacheHelper(sm.redisClient, ""))

	sm.notificationService = NewNotificationService(sm.repo, sm.db, sm.eventPublisher, sm.logger, sm.validator)
	sm.logger.Info("Notification service initialized")

	sm.requestService = NewRequestService(sm.repo, sm.db, sm.logger, sm.validator, sm.notificationService, sm.eventPublisher, idempotency)
	sm.logger.Info("Request service initialized")

	sm.directoryService = NewDirectoryService(sm.repo, sm.logger)
	sm.logger.Info("Directory service initialized")

	sm.exportService = NewExportService(sm.repo, sm.db, sm.requestService, sm.logger)
	sm.logger.Info("Export service initialized")

	sm.queryService = NewQueryService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.logger.Info("Query service initialized")

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Request() RequestService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.requestService == nil {
		panic("request service not initialized")
	}
	return sm.requestService
}

func (sm *serviceManager) Directory() DirectoryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.directoryService == nil {
		panic("directory service not initialized")
	}
	return sm.directoryService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.exportService == nil {
		panic("export service not initialized")
	}
	return sm.exportService
}

func (sm *serviceManager) Notification() NotificationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.notificationService == nil {
		panic("notification service not initialized")
	}
	return sm.notificationService
}

func (sm *serviceManager) Query() QueryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.queryService == nil {
		panic("query service not initialized")
	}
	return sm.queryService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if err := sm.eventPublisher.Close(); err != nil {
		sm.logger.Error("Failed to close event publisher", "error", err)
	}

	if repoManager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := repoManager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
