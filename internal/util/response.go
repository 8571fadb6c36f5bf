package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the data part of the unified success envelope.
type Response map[string]interface{}

// Business codes returned alongside HTTP status.
const (
	CodeOK           = 0
	CodeInvalidParam = 40001
	CodeAuth         = 40101
	CodeNotFound     = 40401
	CodeMismatch     = 40002
	CodeConflict     = 40901
	CodeServerErr    = 50001
)

// Success writes the unified success envelope.
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error writes the unified error envelope.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// ErrorWithDetail writes the error envelope plus extra fields, e.g.
// the authoritative remaining amount on a conflict.
func ErrorWithDetail(c *gin.Context, httpStatus int, code int, msg string, detail Response) {
	body := gin.H{
		"code":    code,
		"message": msg,
	}
	for k, v := range detail {
		body[k] = v
	}
	c.JSON(httpStatus, body)
}
