package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeEmptyMessage       = 40001
	CodeInvalidURL         = 40002
	CodeUnauthorized       = 40100
	CodeWorkspaceNotFound  = 40401
	CodeDocumentNotFound   = 40402
	CodeHistoryNotFound    = 40403
	CodeDuplicateWorkspace = 40901
	CodeDuplicateURL       = 40902
	CodeUnsupportedFile    = 41501
	CodeNoSession          = 42201
	CodeNothingToAsk       = 42202
	CodeInternalServer     = 50000
	CodeUpstream           = 50200
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is used when a failed request still changed visible state,
// such as a failed question that appended an explanatory reply.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
