package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/approval/model"
	"github.com/OpenPMS/pms/internal/approval/service"
	"github.com/OpenPMS/pms/internal/auth"
)

// ApprovalRouter exposes the approval request and workflow template endpoints.
type ApprovalRouter struct {
	requests  *service.RequestService
	responses *service.ResponseService
	templates *service.TemplateService
}

func NewApprovalRouter(requests *service.RequestService, responses *service.ResponseService, templates *service.TemplateService) *ApprovalRouter {
	return &ApprovalRouter{
		requests:  requests,
		responses: responses,
		templates: templates,
	}
}

// Register mounts the approval endpoints on the given router group. Template
// authoring is restricted to administrator roles.
func (ar *ApprovalRouter) Register(api *gin.RouterGroup) {
	api.GET("/approval-requests", ar.HandleListRequests)
	api.GET("/approval-requests/:requestID", ar.HandleGetRequest)
	api.POST("/approval-requests/:requestID/respond", ar.HandleRespond)
	api.POST("/approval-requests/:requestID/cancel", ar.HandleCancel)

	admin := api.Group("/workflow-templates", auth.RequireAdministrator())
	admin.POST("", ar.HandleCreateTemplate)
	admin.GET("", ar.HandleListTemplates)
	admin.GET("/:templateID", ar.HandleGetTemplate)
	admin.PATCH("/:templateID", ar.HandleUpdateTemplate)
	admin.POST("/:templateID/steps", ar.HandleAddStep)
	admin.DELETE("/:templateID/steps/:stepID", ar.HandleRemoveStep)
	admin.PUT("/:templateID/steps/order", ar.HandleReorderSteps)
}

// HandleRespond handles POST /api/approval-requests/{requestID}/respond
// Request body: RespondDTO
// Response: RespondResult
func (ar *ApprovalRouter) HandleRespond(c *gin.Context) {
	actor, ok := auth.MustActor(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("requestID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	var respondReq model.RespondDTO
	if err := c.ShouldBindJSON(&respondReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := ar.responses.Respond(c.Request.Context(), requestID, actor, &respondReq)
	if err != nil {
		renderApprovalError(c, err, "failed to record response")
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleCancel handles POST /api/approval-requests/{requestID}/cancel
func (ar *ApprovalRouter) HandleCancel(c *gin.Context) {
	actor, ok := auth.MustActor(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("requestID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	status, err := ar.requests.Cancel(c.Request.Context(), requestID, actor)
	if err != nil {
		renderApprovalError(c, err, "failed to cancel request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestId": requestID, "status": status})
}

// HandleGetRequest handles GET /api/approval-requests/{requestID}
// Response: RequestHistoryDTO with per-step progress
func (ar *ApprovalRouter) HandleGetRequest(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("requestID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	history, err := ar.requests.GetWithHistory(c.Request.Context(), requestID)
	if err != nil {
		renderApprovalError(c, err, "failed to get request")
		return
	}
	c.JSON(http.StatusOK, history)
}

// HandleListRequests handles GET /api/approval-requests
// Optional query filters: status, entityType, propertyId, offset, limit
func (ar *ApprovalRouter) HandleListRequests(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	var filter model.RequestFilter

	if statusStr := c.Query("status"); statusStr != "" {
		status := model.RequestStatus(statusStr)
		filter.Status = &status
	}
	if entityTypeStr := c.Query("entityType"); entityTypeStr != "" {
		entityType := model.EntityType(entityTypeStr)
		filter.EntityType = &entityType
	}
	if propertyIDStr := c.Query("propertyId"); propertyIDStr != "" {
		propertyID, err := uuid.Parse(propertyIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'propertyId' query parameter"})
			return
		}
		filter.PropertyID = &propertyID
	}

	var ok bool
	if filter.Offset, filter.Limit, ok = parsePagination(c); !ok {
		return
	}

	requests, err := ar.requests.List(c.Request.Context(), filter)
	if err != nil {
		renderApprovalError(c, err, "failed to list requests")
		return
	}
	c.JSON(http.StatusOK, requests)
}

// HandleCreateTemplate handles POST /api/workflow-templates
// Request body: CreateTemplateDTO
func (ar *ApprovalRouter) HandleCreateTemplate(c *gin.Context) {
	var createReq model.CreateTemplateDTO
	if err := c.ShouldBindJSON(&createReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	template, err := ar.templates.CreateTemplate(c.Request.Context(), &createReq)
	if err != nil {
		renderApprovalError(c, err, "failed to create template")
		return
	}
	c.JSON(http.StatusCreated, template)
}

// HandleListTemplates handles GET /api/workflow-templates
// Optional query filter: entityType
func (ar *ApprovalRouter) HandleListTemplates(c *gin.Context) {
	var entityType *model.EntityType
	if entityTypeStr := c.Query("entityType"); entityTypeStr != "" {
		et := model.EntityType(entityTypeStr)
		entityType = &et
	}

	templates, err := ar.templates.ListTemplates(c.Request.Context(), entityType)
	if err != nil {
		renderApprovalError(c, err, "failed to list templates")
		return
	}
	c.JSON(http.StatusOK, templates)
}

// HandleGetTemplate handles GET /api/workflow-templates/{templateID}
func (ar *ApprovalRouter) HandleGetTemplate(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template ID"})
		return
	}

	template, err := ar.templates.GetTemplateByID(c.Request.Context(), templateID)
	if err != nil {
		renderApprovalError(c, err, "failed to get template")
		return
	}
	c.JSON(http.StatusOK, template)
}

// HandleUpdateTemplate handles PATCH /api/workflow-templates/{templateID}
// Request body: UpdateTemplateDTO
func (ar *ApprovalRouter) HandleUpdateTemplate(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template ID"})
		return
	}

	var updateReq model.UpdateTemplateDTO
	if err := c.ShouldBindJSON(&updateReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	template, err := ar.templates.UpdateTemplate(c.Request.Context(), templateID, &updateReq)
	if err != nil {
		renderApprovalError(c, err, "failed to update template")
		return
	}
	c.JSON(http.StatusOK, template)
}

// HandleAddStep handles POST /api/workflow-templates/{templateID}/steps
// Request body: CreateStepDTO
func (ar *ApprovalRouter) HandleAddStep(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template ID"})
		return
	}

	var stepDTO model.CreateStepDTO
	if err := c.ShouldBindJSON(&stepDTO); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	template, err := ar.templates.AddStep(c.Request.Context(), templateID, &stepDTO)
	if err != nil {
		renderApprovalError(c, err, "failed to add step")
		return
	}
	c.JSON(http.StatusOK, template)
}

// HandleRemoveStep handles DELETE /api/workflow-templates/{templateID}/steps/{stepID}
func (ar *ApprovalRouter) HandleRemoveStep(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template ID"})
		return
	}
	stepID, err := uuid.Parse(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step ID"})
		return
	}

	template, err := ar.templates.RemoveStep(c.Request.Context(), templateID, stepID)
	if err != nil {
		renderApprovalError(c, err, "failed to remove step")
		return
	}
	c.JSON(http.StatusOK, template)
}

// HandleReorderSteps handles PUT /api/workflow-templates/{templateID}/steps/order
// Request body: {"stepIds": [...]} listing every step of the template in its
// new order.
func (ar *ApprovalRouter) HandleReorderSteps(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template ID"})
		return
	}

	var reorderReq struct {
		StepIDs []uuid.UUID `json:"stepIds" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&reorderReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	template, err := ar.templates.ReorderSteps(c.Request.Context(), templateID, reorderReq.StepIDs)
	if err != nil {
		renderApprovalError(c, err, "failed to reorder steps")
		return
	}
	c.JSON(http.StatusOK, template)
}

// parsePagination reads the offset/limit query parameters. Reports false after
// writing an error response when either is malformed.
func parsePagination(c *gin.Context) (*int, *int, bool) {
	var offset, limit *int

	if offsetStr := c.Query("offset"); offsetStr != "" {
		value, err := strconv.Atoi(offsetStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'offset' query parameter, must be an integer"})
			return nil, nil, false
		}
		offset = &value
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		value, err := strconv.Atoi(limitStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' query parameter, must be an integer"})
			return nil, nil, false
		}
		limit = &value
	}
	return offset, limit, true
}

// renderApprovalError maps the approval error taxonomy onto HTTP statuses.
// Conflicts tell the client to refresh and re-read the request; they are
// never retried as-is.
func renderApprovalError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, approval.ErrNoActiveWorkflow),
		errors.Is(err, approval.ErrWorkflowHasNoSteps),
		errors.Is(err, approval.ErrInvalidEntityReference):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, approval.ErrCommentsRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, approval.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, approval.ErrRequestNotPending),
		errors.Is(err, approval.ErrStepAlreadyAnswered),
		errors.Is(err, approval.ErrRequestNotCancellable),
		errors.Is(err, approval.ErrEntityAlreadyInApproval):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
