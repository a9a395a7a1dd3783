package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hcunanan79/COREcare-access/internal/api/middleware"
	"github.com/hcunanan79/COREcare-access/internal/service"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

// MustGetCaller 从 Gin 上下文构造调用方身份。
// 如果 JWT 中间件未正确注入 user_id 或 role，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	userID := c.GetString(middleware.CtxUserID)
	role := c.GetString(middleware.CtxRole)
	if userID == "" || role == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "authentication required")
		return service.Caller{}, false
	}
	return service.Caller{UserID: userID, Role: role, IP: c.ClientIP()}, true
}

// tokenInfo 当前 Token 的 jti 与过期时间（登出用）
func tokenInfo(c *gin.Context) (string, time.Time) {
	var exp time.Time
	if v, ok := c.Get(middleware.CtxTokenExp); ok {
		exp, _ = v.(time.Time)
	}
	return c.GetString(middleware.CtxTokenJTI), exp
}

// bindFailed 参数绑定失败统一响应
func bindFailed(c *gin.Context, err error) {
	response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "invalid request parameters", err.Error())
}

// handleError 将服务层错误映射为 HTTP 响应；未分类错误记录到 gin 上下文并返回 500
func handleError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		response.Unauthorized(c, response.CodeUnauthorized, err.Error())
		return
	}
	if response.FromError(c, err) {
		return
	}
	_ = c.Error(err)
	response.InternalError(c)
}
