package response

import (
	"net/http"

	appErr "holdem-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

const headerRequestID = "X-Request-ID"

// Body is the envelope every HTTP answer uses. RequestID echoes the id
// the request logger assigned, when there is one.
type Body struct {
	Code      int         `json:"code"`
	Data      interface{} `json:"data"`
	Msg       string      `json:"msg"`
	RequestID string      `json:"requestId,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

func SuccessWithMsg(c *gin.Context, data interface{}, msg string) {
	JSON(c, http.StatusOK, data, msg)
}

func Error(c *gin.Context, status int, msg string) {
	JSON(c, status, gin.H{}, msg)
}

// Fail answers with the status the error maps to and returns it. A 500
// hides the error text from the caller and records it on the context.
func Fail(c *gin.Context, err error) int {
	status := appErr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	Error(c, status, msg)
	return status
}

func JSON(c *gin.Context, status int, data interface{}, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Body{
		Code:      status,
		Data:      data,
		Msg:       msg,
		RequestID: c.Writer.Header().Get(headerRequestID),
	})
}
