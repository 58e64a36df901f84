package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	cartSessionHeader = "X-Cart-Session"
	cartSessionKey    = "cart_session"
	maxSessionLength  = 128
)

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// requestLogger logs every request through zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// requireAPIKey guards admin routes with the X-API-KEY header. An empty key
// leaves the routes open, which is only meant for local development.
func requireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-KEY")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// requestSession returns the X-Cart-Session header when it is usable as a
// cart key
func requestSession(c *gin.Context) (string, bool) {
	session := c.GetHeader(cartSessionHeader)
	if session == "" || len(session) > maxSessionLength {
		return "", false
	}
	return session, true
}

// cartSession resolves the visitor's cart session from the X-Cart-Session
// header, issuing a new one when absent, and echoes it in the response.
func cartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requestSession(c)
		if !ok {
			session = uuid.New().String()
		}

		c.Set(cartSessionKey, session)
		c.Header(cartSessionHeader, session)
		c.Next()
	}
}
