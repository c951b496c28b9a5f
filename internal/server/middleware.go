package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/config"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/logger"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/middleware"
)

const actorKey = "fleetlink.actor"

// currentActor 从请求上下文取会话主体；未鉴权时为空Actor。
func currentActor(c *gin.Context) auth.Actor {
	if v, exists := c.Get(actorKey); exists {
		if a, ok := v.(auth.Actor); ok {
			return a
		}
	}
	return auth.Actor{}
}

// AccessLog 访问日志
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"cost_ms": time.Since(start).Milliseconds(),
			"client":  c.ClientIP(),
		}).Info("http request")
	}
}

// Trace 为每个请求开启一个span。
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		tracer := opentracing.GlobalTracer()
		spanCtx, _ := tracer.Extract(opentracing.HTTPHeaders,
			opentracing.HTTPHeadersCarrier(c.Request.Header))
		span := tracer.StartSpan(c.Request.Method+" "+c.FullPath(),
			ext.RPCServerOption(spanCtx))
		defer span.Finish()

		ext.HTTPMethod.Set(span, c.Request.Method)
		ext.HTTPUrl.Set(span, c.Request.URL.Path)

		c.Request = c.Request.WithContext(
			opentracing.ContextWithSpan(c.Request.Context(), span))
		c.Next()

		ext.HTTPStatusCode.Set(span, uint16(c.Writer.Status()))
		if c.Writer.Status() >= http.StatusInternalServerError {
			ext.Error.Set(span, true)
		}
	}
}

// RateLimit 全局限流
func RateLimit(limiter middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				response{Code: http.StatusTooManyRequests, Message: "too many requests"})
			return
		}
		c.Next()
	}
}

// Authn 解析并校验访问令牌，把会话主体放入请求上下文。
// cfg.Auth.Enabled 关闭时放行为匿名管理员（本地联调用）。
func Authn(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Set(actorKey, auth.Actor{ID: "dev", Roles: []string{auth.RoleUser, auth.RoleAdmin}})
			c.Next()
			return
		}

		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response{Code: http.StatusUnauthorized, Message: "missing access token"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response{Code: http.StatusUnauthorized, Message: "invalid access token"})
			return
		}
		c.Set(actorKey, auth.Actor{ID: claims.Subject, Roles: claims.Roles})
		c.Next()
	}
}

// RequireAdmin 仅管理员路由的前置拦截（引擎内部还有最后防线）。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentActor(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden,
				response{Code: http.StatusForbidden, Message: "administrator role required"})
			return
		}
		c.Next()
	}
}
