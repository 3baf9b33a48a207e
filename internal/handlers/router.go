package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/taleemhub/monitoring-service/internal/config"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/services"
	"github.com/taleemhub/monitoring-service/internal/utils"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

// creatorRoles are the roles whose hierarchy row carries valid assignees.
// The exact per-target check stays in the service layer; the route gate only
// keeps pure respondents out of creation endpoints.
var creatorRoles = []models.UserRole{
	models.RoleDEO, models.RoleDDEO, models.RoleAEO,
	models.RoleHeadTeacher, models.RoleTrainingManager,
}

// delegatorRoles are the roles allowed to re-delegate assigned requests.
var delegatorRoles = []models.UserRole{
	models.RoleDEO, models.RoleDDEO, models.RoleAEO, models.RoleHeadTeacher,
}

type HandlerManager struct {
	requestHandler      *RequestHandler
	userHandler         *UserHandler
	queryHandler        *QueryHandler
	notificationHandler *NotificationHandler
	authMiddleware      *CasdoorAuthMiddleware
	repo                repositories.Repository
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	repo repositories.Repository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, repo.User())

	return &HandlerManager{
		requestHandler:      NewRequestHandler(serviceManager.Request(), serviceManager.Export(), validator, logger),
		userHandler:         NewUserHandler(serviceManager.Directory(), logger),
		queryHandler:        NewQueryHandler(serviceManager.Query(), logger),
		notificationHandler: NewNotificationHandler(serviceManager.Notification(), logger),
		authMiddleware:      authMiddleware,
		repo:                repo,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Data request routes
		requests := v1.Group("/requests")
		{
			// Creation and metadata changes - creator-capable roles only
			requests.POST("", hm.authMiddleware.RequireRoleMiddleware(creatorRoles...), hm.requestHandler.CreateRequest)
			requests.PATCH("/:id", hm.authMiddleware.RequireRoleMiddleware(creatorRoles...), hm.requestHandler.UpdateRequest)
			requests.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(creatorRoles...), hm.requestHandler.DeleteRequest)

			// Viewing - all authenticated users; the service applies the
			// hierarchy visibility rule per viewer
			requests.GET("", hm.requestHandler.ListRequests)
			requests.GET("/:id", hm.requestHandler.GetRequest)

			// Response workflow
			requests.POST("/:id/responses", hm.requestHandler.SubmitResponses)
			requests.POST("/:id/delegate", hm.authMiddleware.RequireRoleMiddleware(delegatorRoles...), hm.requestHandler.DelegateRequest)

			// Statistics and export - creator-capable roles only
			requests.GET("/:id/stats", hm.authMiddleware.RequireRoleMiddleware(creatorRoles...), hm.requestHandler.GetRequestStats)
			requests.GET("/:id/export", hm.authMiddleware.RequireRoleMiddleware(creatorRoles...), hm.requestHandler.ExportRequest)
			requests.GET("/stats/creator", hm.authMiddleware.RequireRoleMiddleware(creatorRoles...), hm.requestHandler.GetCreatorStats)
		}

		// Directory routes
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/eligible-assignees", hm.userHandler.ListEligibleAssignees)
			users.GET("/:id", hm.userHandler.GetUser)
		}

		// Query routes
		queries := v1.Group("/queries")
		{
			queries.POST("", hm.queryHandler.CreateQuery)
			queries.GET("", hm.queryHandler.ListQueries)
			queries.GET("/:id", hm.queryHandler.GetQuery)
			queries.POST("/:id/responses", hm.queryHandler.RespondToQuery)
			queries.POST("/:id/close", hm.queryHandler.CloseQuery)
			queries.DELETE("/:id", hm.queryHandler.DeleteQuery)
		}

		// Notification routes
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", hm.notificationHandler.ListNotifications)
			notifications.PATCH("/:id/read", hm.notificationHandler.MarkNotificationRead)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := hm.repo.Ping(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{
				"status":  "unhealthy",
				"service": "monitoring-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "monitoring-service",
		})
	})
}
