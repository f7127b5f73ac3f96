package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ainexus_server/internal/pkg/jwt"
	"github.com/qs3c/ainexus_server/internal/pkg/response"
)

const (
	AdminSubjectKey = "adminSubject"
)

// AdminAuth JWT 认证中间件，仅允许 admin 角色
func AdminAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "Missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "Invalid authorization format")
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "Invalid or expired token")
			return
		}

		if claims.Role != jwt.RoleAdmin {
			response.PermissionError(c, "Admin access required")
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}

// GetAdminSubject 从上下文获取管理员标识
func GetAdminSubject(c *gin.Context) (string, bool) {
	subject, exists := c.Get(AdminSubjectKey)
	if !exists {
		return "", false
	}
	s, ok := subject.(string)
	return s, ok
}
