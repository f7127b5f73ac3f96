package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 状态码对应的默认消息
var statusMessages = map[int]string{
	http.StatusBadRequest:            "Invalid request",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusForbidden:             "Access denied",
	http.StatusNotFound:              "Not found",
	http.StatusConflict:              "Duplicate request",
	http.StatusRequestEntityTooLarge: "Request body too large",
	http.StatusInternalServerError:   "Internal server error",
}

// ErrorBody 统一错误结构
type ErrorBody struct {
	Error string `json:"error"`
}

// Success 成功响应，直接输出 payload
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error 错误响应
func Error(c *gin.Context, status int, message string) {
	if message == "" {
		message = statusMessages[status]
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: message})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// QuotaError 配额不足或订阅不可用
func QuotaError(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// DuplicateError 重复操作
func DuplicateError(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// TooLargeError 请求体过大
func TooLargeError(c *gin.Context, message string) {
	Error(c, http.StatusRequestEntityTooLarge, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
