package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error reports an application failure. The HTTP status stays 200 and the
// code travels in the body.
func Error(c *gin.Context, code int, message string) {
	Fail(c, http.StatusOK, code, message)
}

// Fail is Error with an explicit HTTP status, for failures the transport
// itself has to signal (oversized bodies, throttling).
func Fail(c *gin.Context, status int, code int, message string) {
	proxyutil.FailJson(c, status, AsCodeErr(uint32(code), message))
}
