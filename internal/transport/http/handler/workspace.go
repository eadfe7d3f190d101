package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-workspace/internal/app"
	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/transport/http/response"
)

type WorkspaceHandler struct {
	service *app.WorkspaceService
}

type CreateWorkspaceRequest struct {
	Name string `json:"ws_name" binding:"required,max=128"`
}

type UpdateWorkspaceRequest struct {
	Name   string `json:"ws_name" binding:"required,max=128"`
	Active *bool  `json:"is_active"`
}

type LoadHistoryRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func NewWorkspaceHandler(service *app.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{service: service}
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	workspaces, err := h.service.RefreshWorkspaces(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, gin.H{
		"workspaces":     workspaces,
		"selected_ws_id": h.service.Selected(userID),
	})
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	ws, err := h.service.CreateWorkspace(c.Request.Context(), userID, req.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, ws)
}

func (h *WorkspaceHandler) Update(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	var req UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	ws, err := h.service.UpdateWorkspace(c.Request.Context(), userID, model.Workspace{
		ID:     wsID,
		Name:   req.Name,
		Active: active,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, ws)
}

func (h *WorkspaceHandler) Delete(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteWorkspace(c.Request.Context(), userID, wsID); err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"selected_ws_id": h.service.Selected(userID)})
}

func (h *WorkspaceHandler) Select(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	view, err := h.service.SelectWorkspace(c.Request.Context(), userID, wsID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, view)
}

func (h *WorkspaceHandler) View(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	view, err := h.service.View(c.Request.Context(), userID, wsID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, view)
}

func (h *WorkspaceHandler) Refresh(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	view, err := h.service.RefreshSession(c.Request.Context(), userID, wsID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, view)
}

func (h *WorkspaceHandler) Files(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	files, err := h.service.ListUploadedFiles(c.Request.Context(), userID, wsID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"files": files})
}

func (h *WorkspaceHandler) History(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	records, err := h.service.PromptHistory(c.Request.Context(), userID, wsID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, records)
}

func (h *WorkspaceHandler) LoadHistory(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	var req LoadHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	view, err := h.service.LoadPromptHistory(c.Request.Context(), userID, wsID, req.SessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, view)
}

func (h *WorkspaceHandler) Notifications(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	response.OK(c, h.service.Notifications(userID))
}
