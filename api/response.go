package api

import (
	"errors"
	"net/http"

	"costcenter/config"
	"costcenter/service"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401 错误响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Conflict 409 错误响应
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// InternalError 500 错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// ServiceUnavailable 503 错误响应
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}

// DomainError 将领域错误映射为 HTTP 响应
// 拒绝原因原样透传给调用方（金额对限额、非法状态等都是预期内的业务拒绝），
// 只有未识别的内部错误走 config.SafeErrorMessage 收敛
func DomainError(c *gin.Context, err error, fallback string) {
	var (
		validationErr *service.ValidationError
		notFoundErr   *service.NotFoundError
		transitionErr *service.InvalidTransitionError
		stateErr      *service.InvalidStateError
		budgetErr     *service.InsufficientBudgetError
		balanceErr    *service.InsufficientBalanceError
		concurrentErr *service.ConcurrentModificationError
		partialErr    *service.PartialCommitError
		gatewayErr    *service.GatewayUnavailableError
	)
	switch {
	case errors.As(err, &validationErr):
		BadRequest(c, validationErr.Error())
	case errors.As(err, &notFoundErr):
		NotFound(c, notFoundErr.Error())
	case errors.As(err, &transitionErr):
		Conflict(c, transitionErr.Error())
	case errors.As(err, &stateErr):
		Conflict(c, stateErr.Error())
	case errors.As(err, &budgetErr):
		BadRequest(c, budgetErr.Error())
	case errors.As(err, &balanceErr):
		BadRequest(c, balanceErr.Error())
	case errors.As(err, &concurrentErr):
		Conflict(c, concurrentErr.Error())
	case errors.As(err, &partialErr):
		InternalError(c, partialErr.Error())
	case errors.As(err, &gatewayErr):
		ServiceUnavailable(c, config.SafeErrorMessage(err, "账务网关暂时不可用，请稍后重试"))
	default:
		InternalError(c, config.SafeErrorMessage(err, fallback))
	}
}
