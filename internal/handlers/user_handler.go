package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/services"
	"github.com/taleemhub/monitoring-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	directoryService services.DirectoryService
}

func NewUserHandler(directoryService services.DirectoryService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler:      NewBaseHandler(logger),
		directoryService: directoryService,
	}
}

// ListUsers lists directory users with optional filtering
// @Summary List users
// @Description Get a paginated list of directory users
// @Tags users
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Param q query string false "Search query (name or phone)"
// @Param role query string false "Filter by role"
// @Param district_id query string false "Filter by district"
// @Param cluster_id query string false "Filter by cluster"
// @Param school_id query string false "Filter by school"
// @Success 200 {object} services.UserListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")

	if _, err := GetUserIDFromContext(c); err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	filters := h.parseUserFilters(c)

	users, err := h.directoryService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// GetUser retrieves a directory user by ID
// @Summary Get user by ID
// @Description Get user information by ID
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting user", "user_id", id)

	user, err := h.directoryService.GetUser(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListEligibleAssignees returns users the caller may assign work to
// @Summary List eligible assignees
// @Description Applies the role hierarchy and unit scoping to the caller; with
// a request_id, users already on that request are excluded
// @Tags users
// @Accept json
// @Produce json
// @Param request_id query string false "Exclude users already assigned to this request"
// @Success 200 {object} services.EligibleAssigneesResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /users/eligible-assignees [get]
func (h *UserHandler) ListEligibleAssignees(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Listing eligible assignees", "requester_id", userID)

	var requestID *string
	if rid := c.Query("request_id"); rid != "" {
		requestID = &rid
	}

	users, err := h.directoryService.EligibleAssignees(c.Request.Context(), userID, requestID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// ===== HELPER METHODS =====

func (h *UserHandler) parseUserFilters(c *gin.Context) repositories.UserFilters {
	page := 1
	size := 20

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if sizeStr := c.Query("size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
			size = s
		}
	}

	filters := repositories.UserFilters{
		Limit:  size,
		Offset: (page - 1) * size,
		Query:  c.Query("q"),
	}

	if role := c.Query("role"); role != "" {
		userRole := models.UserRole(role)
		filters.Role = &userRole
	}

	if districtID := c.Query("district_id"); districtID != "" {
		filters.DistrictID = &districtID
	}

	if clusterID := c.Query("cluster_id"); clusterID != "" {
		filters.ClusterID = &clusterID
	}

	if schoolID := c.Query("school_id"); schoolID != "" {
		filters.SchoolID = &schoolID
	}

	return filters
}
