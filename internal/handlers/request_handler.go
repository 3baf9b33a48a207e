package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/services"
	"github.com/taleemhub/monitoring-service/internal/utils"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

type RequestHandler struct {
	BaseHandler
	requestService services.RequestService
	exportService  services.ExportService
	validator      *validator.Validator
}

func NewRequestHandler(
	requestService services.RequestService,
	exportService services.ExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *RequestHandler {
	return &RequestHandler{
		BaseHandler:    NewBaseHandler(logger),
		requestService: requestService,
		exportService:  exportService,
		validator:      validator,
	}
}

// CreateRequest creates a new data request and fans it out to assignees
// @Summary Create data request
// @Description Creates a data request with field template and assignee fan-out
// @Tags requests
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client token deduplicating retried creates"
// @Param request body services.CreateRequestRequest true "Request data"
// @Success 201 {object} services.RequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req services.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Creating data request", "assignees", len(req.AssigneeIDs))

	request, err := h.requestService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// GetRequest retrieves a data request by ID
// @Summary Get data request
// @Description Retrieves a data request with fields, assignees and viewer capabilities
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} services.RequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
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

	request, err := h.requestService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// UpdateRequest patches request metadata. The field template is immutable
// once the request exists, so fields are not part of the payload.
// @Summary Update data request
// @Description Patches title, description, priority, due date or archival
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body services.UpdateRequestRequest true "Request patch"
// @Success 200 {object} services.RequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id} [patch]
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Updating data request", "request_id", id)

	var req services.UpdateRequestRequest
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

	request, err := h.requestService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// DeleteRequest deletes a data request and its responses
// @Summary Delete data request
// @Description Deletes a request; only the creator may delete
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id} [delete]
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Deleting data request", "request_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	if err := h.requestService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListRequests lists requests visible to the caller
// @Summary List data requests
// @Description Lists requests the caller created, is assigned to, or oversees
// @Tags requests
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param status query string false "Request status"
// @Param priority query string false "Request priority"
// @Param archived query bool false "Include only archived or unarchived"
// @Success 200 {object} services.RequestListResponse
// @Failure 401 {object} ErrorResponse
// @Router /requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	filters := h.parseRequestFilters(c)
	requests, err := h.requestService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

// SubmitResponses submits the caller's answers for a request
// @Summary Submit responses
// @Description Saves the caller's field responses and marks their assignment completed
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param responses body services.SubmitResponsesRequest true "Field responses"
// @Success 200 {object} services.RequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /requests/{id}/responses [post]
func (h *RequestHandler) SubmitResponses(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Submitting responses", "request_id", id)

	var req services.SubmitResponsesRequest
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

	request, err := h.requestService.SubmitResponses(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// DelegateRequest fans a request out to further assignees
// @Summary Delegate request
// @Description Adds assignees under the caller, inheriting the field template
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param delegation body services.DelegateRequest true "Delegation targets"
// @Success 200 {object} services.RequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /requests/{id}/delegate [post]
func (h *RequestHandler) DelegateRequest(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.DelegateRequest
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

	h.LogRequest(c, "Delegating request", "request_id", id, "targets", len(req.AssigneeIDs))

	request, err := h.requestService.Delegate(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// GetRequestStats retrieves completion statistics for a request
// @Summary Get request statistics
// @Description Returns assignee totals and completion rate
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} repositories.RequestStats
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id}/stats [get]
func (h *RequestHandler) GetRequestStats(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting request stats", "request_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	stats, err := h.requestService.GetStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetCreatorStats retrieves aggregate statistics for the caller's requests
// @Summary Get creator statistics
// @Description Returns totals over all requests the caller created
// @Tags requests
// @Accept json
// @Produce json
// @Success 200 {object} repositories.CreatorStats
// @Failure 401 {object} ErrorResponse
// @Router /requests/stats/creator [get]
func (h *RequestHandler) GetCreatorStats(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	stats, err := h.requestService.GetCreatorStats(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportRequest downloads a request's responses as a spreadsheet
// @Summary Export request responses
// @Description Renders all assignee responses as an Excel workbook
// @Tags requests
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id}/export [get]
func (h *RequestHandler) ExportRequest(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Exporting request responses", "request_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	result, err := h.exportService.ExportRequest(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func (h *RequestHandler) parseRequestFilters(c *gin.Context) repositories.RequestFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.RequestFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if status := c.Query("status"); status != "" {
		requestStatus := models.RequestStatus(status)
		filters.Status = &requestStatus
	}

	if priority := c.Query("priority"); priority != "" {
		requestPriority := models.RequestPriority(priority)
		filters.Priority = &requestPriority
	}

	if creatorID := c.Query("creator_id"); creatorID != "" {
		filters.CreatedBy = &creatorID
	}

	if archived := c.Query("archived"); archived != "" {
		val := archived == "true"
		filters.Archived = &val
	}

	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.DateFrom = &t
		}
	}

	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.DateTo = &t
		}
	}

	return filters
}
