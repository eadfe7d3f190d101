package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gopherai-workspace/internal/app"
	"gopherai-workspace/internal/transport/http/middleware"
	"gopherai-workspace/internal/transport/http/response"
)

type errorMapping struct {
	target error
	status int
	code   int
}

var serviceErrors = []errorMapping{
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrEmptyMessage, http.StatusBadRequest, response.CodeEmptyMessage},
	{app.ErrInvalidURL, http.StatusBadRequest, response.CodeInvalidURL},
	{app.ErrWorkspaceNotFound, http.StatusNotFound, response.CodeWorkspaceNotFound},
	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrHistoryNotFound, http.StatusNotFound, response.CodeHistoryNotFound},
	{app.ErrDuplicateWorkspace, http.StatusConflict, response.CodeDuplicateWorkspace},
	{app.ErrDuplicateURL, http.StatusConflict, response.CodeDuplicateURL},
	{app.ErrUnsupportedFile, http.StatusUnsupportedMediaType, response.CodeUnsupportedFile},
	{app.ErrNoSession, http.StatusUnprocessableEntity, response.CodeNoSession},
	{app.ErrNothingToAsk, http.StatusUnprocessableEntity, response.CodeNothingToAsk},
	{app.ErrRemote, http.StatusBadGateway, response.CodeUpstream},
}

func statusFor(err error) (int, int, string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.target.Error()
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, response.CodeUpstream, "request cancelled"
	}
	return http.StatusInternalServerError, response.CodeInternalServer, "internal server error"
}

func writeServiceError(c *gin.Context, err error) {
	status, code, msg := statusFor(err)
	response.Error(c, status, code, msg)
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok && userID != 0
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// requestScope resolves the caller and the :id path parameter, writing the
// error response itself when either is missing.
func requestScope(c *gin.Context) (uint, uint, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, 0, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid id")
		return 0, 0, false
	}
	return userID, id, true
}
