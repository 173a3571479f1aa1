package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datapeek/backend/internal/apierror"
	"github.com/datapeek/backend/internal/logger"
	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/repository"
	"github.com/datapeek/backend/internal/service"
)

type DatasetHandler struct {
	datasetService service.DatasetService
	logger         logger.Logger
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(datasetService service.DatasetService, log logger.Logger) *DatasetHandler {
	return &DatasetHandler{
		datasetService: datasetService,
		logger:         log,
	}
}

// Upload handles POST /api/v1/datasets
func (h *DatasetHandler) Upload(c *gin.Context) {
	requestID := apierror.GetRequestID(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apierror.WriteProblem(c, apierror.NewValidationError(requestID, []apierror.FieldError{
			{Field: "file", Message: "multipart field 'file' is required", Code: "required"},
		}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxUploadBytes+1))
	if err != nil {
		apierror.WriteProblem(c, apierror.NewBadRequestError(requestID, err.Error(), "Could not read the uploaded file"))
		return
	}
	if len(data) > service.MaxUploadBytes {
		apierror.WriteProblem(c, apierror.NewPayloadTooLargeError(requestID, service.MaxUploadBytes>>20))
		return
	}

	ds, err := h.datasetService.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		writeServiceError(c, h.logger, err, "")
		return
	}

	h.logger.WithContext(c.Request.Context()).Info("dataset uploaded",
		logger.String("dataset_id", ds.ID),
		logger.String("filename", ds.OriginalFilename),
		logger.Int64("size_bytes", ds.SizeBytes),
	)
	c.JSON(http.StatusAccepted, ds)
}

// List handles GET /api/v1/datasets
func (h *DatasetHandler) List(c *gin.Context) {
	items, err := h.datasetService.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": items})
}

// Get handles GET /api/v1/datasets/:id
func (h *DatasetHandler) Get(c *gin.Context) {
	id := c.Param("id")
	ds, err := h.datasetService.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, err, id)
		return
	}
	c.JSON(http.StatusOK, ds)
}

// Status handles GET /api/v1/datasets/:id/status
func (h *DatasetHandler) Status(c *gin.Context) {
	id := c.Param("id")
	job, err := h.datasetService.Status(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, err, id)
		return
	}
	c.JSON(http.StatusOK, job)
}

// writeServiceError maps service-layer errors onto Problem Details.
func writeServiceError(c *gin.Context, log logger.Logger, err error, datasetID string) {
	requestID := apierror.GetRequestID(c)

	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		apierror.WriteProblem(c, apierror.NewValidationError(requestID, []apierror.FieldError{
			{Field: vErr.Field, Message: vErr.Message},
		}))
	case errors.Is(err, repository.ErrNotFound):
		apierror.WriteProblem(c, apierror.NewNotFoundError(requestID, "Dataset", datasetID))
	case errors.Is(err, service.ErrDatasetNotReady):
		apierror.WriteProblem(c, apierror.NewNotReadyError(requestID, datasetID, 2))
	case errors.Is(err, service.ErrDatasetFailed):
		apierror.WriteProblem(c, apierror.NewAnalysisFailedError(requestID, datasetID))
	default:
		log.WithContext(c.Request.Context()).Error("request failed", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(requestID))
	}
}
