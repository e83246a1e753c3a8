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
	"github.com/OpenPMS/pms/internal/auth"
	"github.com/OpenPMS/pms/internal/property/model"
	"github.com/OpenPMS/pms/internal/property/service"
)

// PropertyRouter exposes the property registry and the three governed
// transaction flows (release, turnover, return).
type PropertyRouter struct {
	properties *service.PropertyService
	movements  *service.MovementService
	releases   *service.ReleaseService
	turnovers  *service.TurnoverService
	returns    *service.ReturnService
}

func NewPropertyRouter(properties *service.PropertyService, movements *service.MovementService,
	releases *service.ReleaseService, turnovers *service.TurnoverService, returns *service.ReturnService) *PropertyRouter {
	return &PropertyRouter{
		properties: properties,
		movements:  movements,
		releases:   releases,
		turnovers:  turnovers,
		returns:    returns,
	}
}

// Register mounts the property endpoints on the given router group.
func (pr *PropertyRouter) Register(api *gin.RouterGroup) {
	api.POST("/properties", pr.HandleCreateProperty)
	api.GET("/properties", pr.HandleListProperties)
	api.GET("/properties/:propertyID", pr.HandleGetProperty)
	api.GET("/properties/:propertyID/movements", pr.HandleListMovements)

	api.POST("/releases", pr.HandleCreateRelease)
	api.GET("/releases/:releaseID", pr.HandleGetRelease)
	api.POST("/releases/:releaseID/complete", pr.HandleCompleteRelease)

	api.POST("/turnovers", pr.HandleCreateTurnover)
	api.GET("/turnovers/:turnoverID", pr.HandleGetTurnover)
	api.POST("/turnovers/:turnoverID/complete", pr.HandleCompleteTurnover)

	api.POST("/returns", pr.HandleCreateReturn)
	api.GET("/returns/:returnID", pr.HandleGetReturn)
	api.POST("/returns/:returnID/complete", pr.HandleCompleteReturn)
}

// HandleCreateProperty handles POST /api/properties
// Request body: CreatePropertyDTO
func (pr *PropertyRouter) HandleCreateProperty(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	var createReq model.CreatePropertyDTO
	if err := c.ShouldBindJSON(&createReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	property, err := pr.properties.Create(c.Request.Context(), &createReq)
	if err != nil {
		renderPropertyError(c, err, "failed to create property")
		return
	}
	c.JSON(http.StatusCreated, property)
}

// HandleListProperties handles GET /api/properties
// Optional query filters: status, businessUnitId, offset, limit
func (pr *PropertyRouter) HandleListProperties(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	var filter model.PropertyFilter

	if statusStr := c.Query("status"); statusStr != "" {
		status := model.PropertyStatus(statusStr)
		filter.Status = &status
	}
	if buStr := c.Query("businessUnitId"); buStr != "" {
		businessUnitID, err := uuid.Parse(buStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'businessUnitId' query parameter"})
			return
		}
		filter.BusinessUnitID = &businessUnitID
	}

	var ok bool
	if filter.Offset, filter.Limit, ok = parsePagination(c); !ok {
		return
	}

	properties, err := pr.properties.List(c.Request.Context(), filter)
	if err != nil {
		renderPropertyError(c, err, "failed to list properties")
		return
	}
	c.JSON(http.StatusOK, properties)
}

// HandleGetProperty handles GET /api/properties/{propertyID}
func (pr *PropertyRouter) HandleGetProperty(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	propertyID, err := uuid.Parse(c.Param("propertyID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property ID"})
		return
	}

	property, err := pr.properties.GetByID(c.Request.Context(), propertyID)
	if err != nil {
		renderPropertyError(c, err, "failed to get property")
		return
	}
	c.JSON(http.StatusOK, property)
}

// HandleListMovements handles GET /api/properties/{propertyID}/movements
// Optional query filters: offset, limit
func (pr *PropertyRouter) HandleListMovements(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	propertyID, err := uuid.Parse(c.Param("propertyID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property ID"})
		return
	}

	offset, limit, ok := parsePagination(c)
	if !ok {
		return
	}

	movements, err := pr.movements.ListByProperty(c.Request.Context(), propertyID, offset, limit)
	if err != nil {
		renderPropertyError(c, err, "failed to list movements")
		return
	}
	c.JSON(http.StatusOK, movements)
}

// HandleCreateRelease handles POST /api/releases
// Request body: CreateReleaseDTO
// Response: CreateTransactionResult with the opened approval request
func (pr *PropertyRouter) HandleCreateRelease(c *gin.Context) {
	actor, ok := auth.MustActor(c)
	if !ok {
		return
	}

	var createReq model.CreateReleaseDTO
	if err := c.ShouldBindJSON(&createReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := pr.releases.CreateWithApproval(c.Request.Context(), &createReq, actor)
	if err != nil {
		renderPropertyError(c, err, "failed to create release")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// HandleGetRelease handles GET /api/releases/{releaseID}
func (pr *PropertyRouter) HandleGetRelease(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	releaseID, err := uuid.Parse(c.Param("releaseID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid release ID"})
		return
	}

	release, err := pr.releases.GetByID(c.Request.Context(), releaseID)
	if err != nil {
		renderPropertyError(c, err, "failed to get release")
		return
	}
	c.JSON(http.StatusOK, release)
}

// HandleCompleteRelease handles POST /api/releases/{releaseID}/complete
func (pr *PropertyRouter) HandleCompleteRelease(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	releaseID, err := uuid.Parse(c.Param("releaseID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid release ID"})
		return
	}

	if err := pr.releases.Complete(c.Request.Context(), releaseID); err != nil {
		renderPropertyError(c, err, "failed to complete release")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": releaseID, "status": model.TransactionStatusCompleted})
}

// HandleCreateTurnover handles POST /api/turnovers
// Request body: CreateTurnoverDTO
func (pr *PropertyRouter) HandleCreateTurnover(c *gin.Context) {
	actor, ok := auth.MustActor(c)
	if !ok {
		return
	}

	var createReq model.CreateTurnoverDTO
	if err := c.ShouldBindJSON(&createReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := pr.turnovers.CreateWithApproval(c.Request.Context(), &createReq, actor)
	if err != nil {
		renderPropertyError(c, err, "failed to create turnover")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// HandleGetTurnover handles GET /api/turnovers/{turnoverID}
func (pr *PropertyRouter) HandleGetTurnover(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	turnoverID, err := uuid.Parse(c.Param("turnoverID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid turnover ID"})
		return
	}

	turnover, err := pr.turnovers.GetByID(c.Request.Context(), turnoverID)
	if err != nil {
		renderPropertyError(c, err, "failed to get turnover")
		return
	}
	c.JSON(http.StatusOK, turnover)
}

// HandleCompleteTurnover handles POST /api/turnovers/{turnoverID}/complete
func (pr *PropertyRouter) HandleCompleteTurnover(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	turnoverID, err := uuid.Parse(c.Param("turnoverID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid turnover ID"})
		return
	}

	if err := pr.turnovers.Complete(c.Request.Context(), turnoverID); err != nil {
		renderPropertyError(c, err, "failed to complete turnover")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": turnoverID, "status": model.TransactionStatusCompleted})
}

// HandleCreateReturn handles POST /api/returns
// Request body: CreateReturnDTO
func (pr *PropertyRouter) HandleCreateReturn(c *gin.Context) {
	actor, ok := auth.MustActor(c)
	if !ok {
		return
	}

	var createReq model.CreateReturnDTO
	if err := c.ShouldBindJSON(&createReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := pr.returns.CreateWithApproval(c.Request.Context(), &createReq, actor)
	if err != nil {
		renderPropertyError(c, err, "failed to create return")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// HandleGetReturn handles GET /api/returns/{returnID}
func (pr *PropertyRouter) HandleGetReturn(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	returnID, err := uuid.Parse(c.Param("returnID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid return ID"})
		return
	}

	ret, err := pr.returns.GetByID(c.Request.Context(), returnID)
	if err != nil {
		renderPropertyError(c, err, "failed to get return")
		return
	}
	c.JSON(http.StatusOK, ret)
}

// HandleCompleteReturn handles POST /api/returns/{returnID}/complete
func (pr *PropertyRouter) HandleCompleteReturn(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	returnID, err := uuid.Parse(c.Param("returnID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid return ID"})
		return
	}

	if err := pr.returns.Complete(c.Request.Context(), returnID); err != nil {
		renderPropertyError(c, err, "failed to complete return")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": returnID, "status": model.TransactionStatusCompleted})
}

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

// renderPropertyError maps transaction flow errors onto HTTP statuses. The
// approval sentinels travel through the composed create flow unchanged, so
// the same taxonomy applies here.
func renderPropertyError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, approval.ErrNoActiveWorkflow),
		errors.Is(err, approval.ErrWorkflowHasNoSteps),
		errors.Is(err, approval.ErrInvalidEntityReference):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, approval.ErrEntityAlreadyInApproval),
		errors.Is(err, approval.ErrRequestNotPending),
		errors.Is(err, service.ErrTransactionNotApproved),
		errors.Is(err, service.ErrPropertyNotAvailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
