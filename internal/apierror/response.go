package apierror

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the MIME type for RFC 9457 Problem Details.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes a ProblemDetails response to the gin context.
// It sets the correct Content-Type header and, if RetryAfter is set,
// also sets the Retry-After header.
func WriteProblem(c *gin.Context, problem *ProblemDetails) {
	c.Header("Content-Type", ContentTypeProblemJSON)

	if problem.RetryAfter != nil {
		c.Header("Retry-After", strconv.Itoa(*problem.RetryAfter))
	}

	c.JSON(problem.Status, problem)
}

// GetRequestID extracts the request ID from the gin context.
// Returns empty string if not found.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Request-ID")
}

// NewValidationError creates a 400 Bad Request response for validation failures.
// Multiple field errors can be included to report all validation issues at once.
func NewValidationError(requestID string, errors []FieldError) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeValidation,
		Title:       TitleValidation,
		Status:      http.StatusBadRequest,
		Detail:      "One or more fields failed validation",
		RequestID:   requestID,
		UserMessage: "Please check your input and try again",
		Errors:      errors,
	}
}

// NewNotFoundError creates a 404 Not Found response.
func NewNotFoundError(requestID, resource, id string) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeNotFound,
		Title:       TitleNotFound,
		Status:      http.StatusNotFound,
		Detail:      fmt.Sprintf("%s with ID '%s' was not found", resource, id),
		RequestID:   requestID,
		UserMessage: fmt.Sprintf("The requested %s could not be found", resource),
	}
}

// NewNotReadyError creates a 409 Conflict response for datasets whose
// analysis is still running. retryAfter hints when to poll again.
func NewNotReadyError(requestID, datasetID string, retryAfter int) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeNotReady,
		Title:       TitleNotReady,
		Status:      http.StatusConflict,
		Detail:      fmt.Sprintf("Dataset '%s' is still being analyzed", datasetID),
		RequestID:   requestID,
		UserMessage: "The dataset is still processing. Try again shortly.",
		RetryAfter:  &retryAfter,
	}
}

// NewAnalysisFailedError creates a 422 response for datasets whose
// analysis ended in failure.
func NewAnalysisFailedError(requestID, datasetID string) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeAnalysisFailed,
		Title:       TitleAnalysisFailed,
		Status:      http.StatusUnprocessableEntity,
		Detail:      fmt.Sprintf("Dataset '%s' could not be analyzed", datasetID),
		RequestID:   requestID,
		UserMessage: "This file could not be analyzed. Check the dataset status for details.",
	}
}

// NewPayloadTooLargeError creates a 413 response for oversized uploads.
func NewPayloadTooLargeError(requestID string, limitMB int) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypePayloadTooLarge,
		Title:       TitlePayloadTooLarge,
		Status:      http.StatusRequestEntityTooLarge,
		Detail:      fmt.Sprintf("Uploaded file exceeds the %d MB limit", limitMB),
		RequestID:   requestID,
		UserMessage: fmt.Sprintf("Files are limited to %d MB", limitMB),
	}
}

// NewBadRequestError creates a 400 Bad Request response for malformed requests.
func NewBadRequestError(requestID, detail, userMessage string) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeBadRequest,
		Title:       TitleBadRequest,
		Status:      http.StatusBadRequest,
		Detail:      detail,
		RequestID:   requestID,
		UserMessage: userMessage,
	}
}

// NewInternalError creates a 500 Internal Server Error response.
// IMPORTANT: This intentionally hides internal error details from the client.
// The actual error should be logged server-side for debugging.
func NewInternalError(requestID string) *ProblemDetails {
	return &ProblemDetails{
		Type:        TypeInternal,
		Title:       TitleInternal,
		Status:      http.StatusInternalServerError,
		Detail:      "An unexpected error occurred",
		RequestID:   requestID,
		UserMessage: "Something went wrong. Please try again later.",
	}
}
