package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driveschool-hub/scheduling-service/internal/config"
	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/services"
	"github.com/driveschool-hub/scheduling-service/internal/utils"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

type HandlerManager struct {
	slotHandler          *SlotHandler
	rideHandler          *RideHandler
	examHandler          *ExamHandler
	courseHandler        *CourseHandler
	changeRequestHandler *ChangeRequestHandler
	authMiddleware       *CasdoorAuthMiddleware
	repoManager          repositories.RepositoryManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorSettings,
	userRepo repositories.UserRepository,
	repoManager repositories.RepositoryManager,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		slotHandler:          NewSlotHandler(serviceManager.Slot(), validator, logger),
		rideHandler:          NewRideHandler(serviceManager.Ride(), validator, logger),
		examHandler:          NewExamHandler(serviceManager.Exam(), validator, logger),
		courseHandler:        NewCourseHandler(serviceManager.Course(), serviceManager.Report(), validator, logger),
		changeRequestHandler: NewChangeRequestHandler(serviceManager.ChangeRequest(), validator, logger),
		authMiddleware:       authMiddleware,
		repoManager:          repoManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		slots := v1.Group("/slots")
		{
			slots.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleStaff), hm.slotHandler.CreateSlot)
			slots.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleStaff), hm.slotHandler.DeleteSlot)
			slots.GET("", hm.slotHandler.ListSlots)
			slots.GET("/:id", hm.slotHandler.GetSlot)
		}

		rides := v1.Group("/rides")
		{
			rides.POST("", hm.rideHandler.BookRide)
			rides.GET("", hm.rideHandler.ListRides)
			rides.GET("/:id", hm.rideHandler.GetRide)
			rides.POST("/:id/start", hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleStaff), hm.rideHandler.StartRide)
			rides.POST("/:id/complete", hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleStaff), hm.rideHandler.CompleteRide)
			rides.POST("/:id/cancel", hm.rideHandler.CancelRide)
		}

		exams := v1.Group("/exams")
		{
			exams.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff), hm.examHandler.ScheduleExam)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.PUT("/:id/criteria/:criterion_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleStaff), hm.examHandler.GradeCriterion)
			exams.POST("/:id/cancel", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff), hm.examHandler.CancelExam)
		}

		courses := v1.Group("/courses")
		{
			courses.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff), hm.courseHandler.PurchaseCourse)
			courses.GET("", hm.courseHandler.ListCourses)
			courses.GET("/:id", hm.courseHandler.GetCourse)
			courses.GET("/:id/progress", hm.courseHandler.GetCourseProgress)
			courses.GET("/:id/export", hm.courseHandler.ExportCourseHistory)
			courses.POST("/:id/hours", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff), hm.courseHandler.ApplyHourPackage)
			courses.POST("/:id/archive", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff), hm.courseHandler.ArchiveCourse)
			courses.GET("/:id/exams", hm.examHandler.ListExamsByCourse)
			courses.POST("/:id/instructor-changes", hm.changeRequestHandler.FileChangeRequest)
		}

		changes := v1.Group("/instructor-changes")
		{
			changes.GET("", hm.changeRequestHandler.ListChangeRequests)
			changes.GET("/:id", hm.changeRequestHandler.GetChangeRequest)
			changes.POST("/:id/resolve", hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff), hm.changeRequestHandler.ResolveChangeRequest)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.repoManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
