package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datapeek/backend/internal/apierror"
	"github.com/datapeek/backend/internal/logger"
	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/service"
)

type ChatHandler struct {
	chatService service.ChatService
	logger      logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      log,
	}
}

// Ask handles POST /api/v1/datasets/:id/chat
func (h *ChatHandler) Ask(c *gin.Context) {
	requestID := apierror.GetRequestID(c)
	id := c.Param("id")

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.WriteProblem(c, apierror.NewValidationError(requestID, []apierror.FieldError{
			{Field: "question", Message: "is required and must be at most 2000 characters", Code: "required"},
		}))
		return
	}

	answer, err := h.chatService.Ask(c.Request.Context(), id, req.Question)
	if err != nil {
		writeServiceError(c, h.logger, err, id)
		return
	}
	c.JSON(http.StatusOK, answer)
}
