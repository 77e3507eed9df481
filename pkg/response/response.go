package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 积分业务错误码
const (
	CodeInvalidAmount         = 1001
	CodeInsufficientBalance   = 1002
	CodeConcurrencyConflict   = 1003
	CodeDailyLimitExceeded    = 1004
	CodeUnsupportedFaceValue  = 1005
	CodeRechargeOrderNotFound = 1006
	CodeRechargeOrderClosed   = 1007
)

// Response 统一响应结构，code 为 0 表示成功，HTTP 状态码不承载业务含义
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "OK",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusOK, Response{
		Code:    CodeUnauthorized,
		Message: "未登录",
	})
}

func ServerError(c *gin.Context) {
	Error(c, CodeServerError, "服务器内部错误")
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
