package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/driveschool-hub/scheduling-service/internal/events"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	LogLevel slog.Level

	// SweepInterval controls the expired-ride reclamation loop.
	SweepInterval time.Duration

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager
type serviceManager struct {
	db             *gorm.DB
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	config         ServiceManagerConfig

	accessService        AccessService
	slotService          SlotService
	rideService          RideService
	examService          ExamService
	courseService        CourseService
	changeRequestService ChangeRequestService
	notificationService  NotificationEventService
	reportService        ReportService

	sweeper *Sweeper

	initialized bool
	mu          sync.RWMutex
}

// NewServiceManager creates a service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:             db,
		repo:           repo,
		logger:         logger,
		validator:      v,
		eventPublisher: publisher,
		config:         config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator) ServiceManager {
	config := ServiceManagerConfig{
		LogLevel:       slog.LevelInfo,
		SweepInterval:  time.Minute,
		DefaultTimeout: 30 * time.Second,
	}

	return NewServiceManager(db, repo, publisher, logger, v, config)
}

// Initialize wires up all services and starts the background sweep.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.accessService = NewAccessService(sm.repo, sm.logger)
	sm.notificationService = NewNotificationEventService(sm.repo, sm.eventPublisher, sm.logger, sm.validator)
	sm.slotService = NewSlotService(sm.repo, sm.accessService, sm.logger, sm.validator)
	sm.rideService = NewRideService(sm.repo, sm.accessService, sm.notificationService, sm.logger, sm.validator)
	sm.examService = NewExamService(sm.repo, sm.accessService, NewStaticCurriculumProvider(), sm.notificationService, sm.logger, sm.validator)
	sm.courseService = NewCourseService(sm.repo, sm.accessService, sm.notificationService, sm.logger, sm.validator)
	sm.changeRequestService = NewChangeRequestService(sm.repo, sm.accessService, sm.notificationService, sm.logger, sm.validator)
	sm.reportService = NewReportService(sm.repo, sm.accessService, sm.logger)

	sm.sweeper = NewSweeper(sm.rideService, sm.config.SweepInterval, sm.logger)
	sm.sweeper.Start()

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Shutdown stops background work and closes the event publisher.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.sweeper != nil {
		if err := sm.sweeper.Stop(ctx); err != nil {
			sm.logger.Error("Sweeper did not stop cleanly", "error", err)
		}
	}

	if err := sm.eventPublisher.Close(); err != nil {
		return fmt.Errorf("failed to close event publisher: %w", err)
	}

	sm.initialized = false
	return nil
}

func (sm *serviceManager) Access() AccessService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.accessService
}

func (sm *serviceManager) Slot() SlotService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.slotService
}

func (sm *serviceManager) Ride() RideService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.rideService
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.examService
}

func (sm *serviceManager) Course() CourseService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.courseService
}

func (sm *serviceManager) ChangeRequest() ChangeRequestService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.changeRequestService
}

func (sm *serviceManager) Notification() NotificationEventService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.notificationService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.reportService
}

func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}
