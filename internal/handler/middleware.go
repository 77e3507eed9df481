package handler

import (
	"strings"
	"time"

	"agrimatch/pkg/auth"
	"agrimatch/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	userIDKey       = "user_id"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware 透传或生成请求ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware 访问日志
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path = path + "?" + query
		}

		c.Next()

		log.Info().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("HTTP")
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("PANIC")
				c.AbortWithStatusJSON(500, response.Response{
					Code:    response.CodeServerError,
					Message: "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AuthMiddleware 校验登录令牌（Authorization: Bearer 或 cookie），未登录直接返回 401
func AuthMiddleware(tm *auth.TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := resolveUser(c, tm, cookieName)
		if !ok {
			response.Unauthorized(c)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware 有合法令牌时设置用户，否则按匿名处理
func OptionalAuthMiddleware(tm *auth.TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := resolveUser(c, tm, cookieName); ok {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

func resolveUser(c *gin.Context, tm *auth.TokenManager, cookieName string) (int64, bool) {
	token := ""
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" && cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil {
			token = v
		}
	}
	if token == "" {
		return 0, false
	}

	userID, err := tm.Parse(token)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// currentUserID 匿名请求返回 0
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
