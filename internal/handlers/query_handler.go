package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/services"
	"github.com/taleemhub/monitoring-service/internal/utils"
)

type QueryHandler struct {
	BaseHandler
	queryService services.QueryService
}

func NewQueryHandler(queryService services.QueryService, logger utils.Logger) *QueryHandler {
	return &QueryHandler{
		BaseHandler:  NewBaseHandler(logger),
		queryService: queryService,
	}
}

// CreateQuery opens a query addressed to another staff member
// @Summary Create query
// @Description Opens a free-form question addressed to another user
// @Tags queries
// @Accept json
// @Produce json
// @Param query body services.CreateQueryRequest true "Query data"
// @Success 201 {object} models.Query
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /queries [post]
func (h *QueryHandler) CreateQuery(c *gin.Context) {
	var req services.CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	query, err := h.queryService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, query)
}

// GetQuery retrieves a query with its responses
// @Summary Get query
// @Tags queries
// @Produce json
// @Param id path string true "Query ID"
// @Success 200 {object} models.Query
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /queries/{id} [get]
func (h *QueryHandler) GetQuery(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	query, err := h.queryService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, query)
}

// ListQueries lists queries the caller sent or received
// @Summary List queries
// @Tags queries
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param status query string false "Query status (open, answered, closed)"
// @Success 200 {object} services.QueryListResponse
// @Failure 401 {object} ErrorResponse
// @Router /queries [get]
func (h *QueryHandler) ListQueries(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.QueryFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if status := c.Query("status"); status != "" {
		queryStatus := models.QueryStatus(status)
		filters.Status = &queryStatus
	}

	queries, err := h.queryService.ListForUser(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, queries)
}

// RespondToQuery adds a reply to a query
// @Summary Respond to query
// @Tags queries
// @Accept json
// @Produce json
// @Param id path string true "Query ID"
// @Param response body services.RespondQueryRequest true "Response data"
// @Success 200 {object} models.Query
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /queries/{id}/responses [post]
func (h *QueryHandler) RespondToQuery(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.RespondQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Responding to query", "query_id", id)

	query, err := h.queryService.Respond(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, query)
}

// CloseQuery closes a query; only the opener may close
// @Summary Close query
// @Tags queries
// @Produce json
// @Param id path string true "Query ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /queries/{id}/close [post]
func (h *QueryHandler) CloseQuery(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Closing query", "query_id", id)

	if err := h.queryService.CloseQuery(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Query closed successfully",
	})
}

// DeleteQuery deletes a query; only the opener may delete
// @Summary Delete query
// @Tags queries
// @Produce json
// @Param id path string true "Query ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /queries/{id} [delete]
func (h *QueryHandler) DeleteQuery(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Deleting query", "query_id", id)

	if err := h.queryService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
