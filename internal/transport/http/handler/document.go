package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-workspace/internal/app"
	"gopherai-workspace/internal/transport/http/response"
)

const maxUploadBytes = 32 << 20

type DocumentHandler struct {
	service *app.WorkspaceService
}

type ScrapeURLRequest struct {
	URL string `json:"url"`
}

func NewDocumentHandler(service *app.WorkspaceService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if header.Size > maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBadRequest, "file too large")
		return
	}
	f, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unreadable file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unreadable file")
		return
	}

	doc, err := h.service.UploadDocument(c.Request.Context(), userID, wsID, header.Filename, data)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, docID, ok := requestScope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteDocument(c.Request.Context(), userID, docID); err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"doc_id": docID})
}

func (h *DocumentHandler) ScrapeURL(c *gin.Context) {
	userID, wsID, ok := requestScope(c)
	if !ok {
		return
	}
	var req ScrapeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	res, err := h.service.ScrapeURL(c.Request.Context(), userID, wsID, req.URL)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, res)
}
