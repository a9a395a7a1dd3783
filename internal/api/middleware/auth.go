package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hcunanan79/COREcare-access/pkg/jwt"
	"github.com/hcunanan79/COREcare-access/pkg/redis"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

// 认证上下文键
const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
	CtxRole     = "role"
	CtxTokenJTI = "token_jti"
	CtxTokenExp = "token_exp"
)

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token
// rdb 为 nil 时跳过黑名单检查
func JWTAuth(jwtMgr *jwt.Manager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, response.CodeUnauthorized, "invalid authorization header")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			response.Unauthorized(c, response.CodeUnauthorized, msg)
			c.Abort()
			return
		}

		if rdb != nil && claims.ID != "" {
			revoked, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID)
			// Redis 故障时放行，避免整站不可用
			if err == nil && revoked {
				response.Unauthorized(c, response.CodeUnauthorized, "token has been revoked")
				c.Abort()
				return
			}
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxTokenJTI, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(CtxTokenExp, claims.ExpiresAt.Time)
		} else {
			c.Set(CtxTokenExp, time.Time{})
		}

		c.Next()
	}
}

// DenialRecorder 记录被角色守卫拒绝的请求
type DenialRecorder interface {
	RecordDenial(ctx context.Context, userID, role, ip, route string)
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一；拒绝时交由 recorder 写入审计，recorder 可为 nil
func RoleAuth(recorder DenialRecorder, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(CtxRole)
		if userRole == "" {
			response.Unauthorized(c, response.CodeUnauthorized, "authentication required")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		if recorder != nil {
			recorder.RecordDenial(c.Request.Context(), c.GetString(CtxUserID), userRole, c.ClientIP(),
				c.Request.Method+" "+c.FullPath())
		}
		response.Forbidden(c, response.CodeAuthorization, "You do not have permission to perform this action.")
		c.Abort()
	}
}
