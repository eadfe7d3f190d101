package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-workspace/internal/app"
	"gopherai-workspace/internal/transport/http/response"
)

type MessageHandler struct {
	service *app.WorkspaceService
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

func NewMessageHandler(service *app.WorkspaceService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	reply, err := h.service.SendMessage(c.Request.Context(), userID, wsID, req.Content)
	if err != nil {
		status, code, msg := statusFor(err)
		if reply.ID != "" {
			response.ErrorWithData(c, status, code, msg, reply)
			return
		}
		response.Error(c, status, code, msg)
		return
	}
	response.OK(c, reply)
}
