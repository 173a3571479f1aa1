package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datapeek/backend/internal/apierror"
	"github.com/datapeek/backend/internal/logger"
	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/service"
)

type PivotHandler struct {
	pivotService service.PivotService
	logger       logger.Logger
}

// NewPivotHandler creates a new pivot handler
func NewPivotHandler(pivotService service.PivotService, log logger.Logger) *PivotHandler {
	return &PivotHandler{
		pivotService: pivotService,
		logger:       log,
	}
}

// Pivot handles POST /api/v1/datasets/:id/pivot
func (h *PivotHandler) Pivot(c *gin.Context) {
	requestID := apierror.GetRequestID(c)
	id := c.Param("id")

	var req models.PivotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.WriteProblem(c, apierror.NewBadRequestError(requestID, err.Error(), "Invalid JSON format"))
		return
	}

	result, err := h.pivotService.Pivot(c.Request.Context(), id, req)
	if err != nil {
		writeServiceError(c, h.logger, err, id)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Explain handles POST /api/v1/datasets/:id/explain
func (h *PivotHandler) Explain(c *gin.Context) {
	requestID := apierror.GetRequestID(c)
	id := c.Param("id")

	var req models.ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.WriteProblem(c, apierror.NewBadRequestError(requestID, err.Error(), "Invalid JSON format"))
		return
	}
	if req.AnomalyIndex == nil {
		apierror.WriteProblem(c, apierror.NewValidationError(requestID, []apierror.FieldError{
			{Field: "anomaly_index", Message: "is required", Code: "required"},
		}))
		return
	}

	result, err := h.pivotService.Explain(c.Request.Context(), id, *req.AnomalyIndex)
	if err != nil {
		writeServiceError(c, h.logger, err, id)
		return
	}
	c.JSON(http.StatusOK, result)
}
