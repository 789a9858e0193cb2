package handler

import (
	"errors"
	"net/http"

	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor 错误分类到 HTTP 状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail 记录日志并返回统一错误响应
func fail(c *gin.Context, message string, err error) {
	utils.Logger.Error(message,
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	c.JSON(statusFor(err), model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}
