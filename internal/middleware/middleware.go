package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/configs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	middlewareOnce sync.Once
	middleware     Middleware
)

type Middleware interface {
	GetMiddleWares() []gin.HandlerFunc
}

type MiddlewareHandler struct {
	authEnabled  bool
	bearerTokens map[string]bool
}

func NewMiddleware(config configs.Configs) Middleware {
	middlewareOnce.Do(func() {
		tokens := make(map[string]bool)
		for _, token := range strings.Split(config.AuthBearerTokens, ",") {
			token = strings.TrimSpace(token)
			if token != "" {
				tokens[token] = true
			}
		}
		if config.AuthEnabled && len(tokens) == 0 {
			log.Warn().Msg("AUTH_ENABLED is set but AUTH_BEARER_TOKENS is empty, all requests will be rejected")
		}
		middleware = &MiddlewareHandler{
			authEnabled:  config.AuthEnabled,
			bearerTokens: tokens,
		}
	})
	return middleware
}

func (m *MiddlewareHandler) GetMiddleWares() []gin.HandlerFunc {
	var middlewares []gin.HandlerFunc
	middlewares = append(middlewares, m.Cors()...)
	if m.authEnabled {
		middlewares = append(middlewares, m.AuthMiddleware())
	}
	return middlewares
}

func (m *MiddlewareHandler) Cors() []gin.HandlerFunc {
	var middlewares []gin.HandlerFunc
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // Adjust to specific origins if needed
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true

	middlewares = append(middlewares, cors.New(corsConfig))
	return middlewares
}

// AuthMiddleware checks for a valid bearer token except on health routes
func (m *MiddlewareHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/health") {
			c.Next()
			return
		}

		// Extract the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Error().
				Str("reason", "Authorization header required").
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("unauthorized request blocked by auth middleware")
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "Authorization header required"})
			c.Abort()
			return
		}

		// Check if the header is in the correct format (e.g., "Bearer <token>")
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			log.Error().
				Str("reason", "Authorization token must be Bearer <token>").
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("unauthorized request blocked by auth middleware")
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "Authorization token must be Bearer <token>"})
			c.Abort()
			return
		}

		if !m.bearerTokens[tokenString] {
			log.Error().
				Str("reason", "Invalid token").
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("unauthorized request blocked by auth middleware")
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "Invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
