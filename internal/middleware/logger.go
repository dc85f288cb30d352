package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/zipkiosk/pkg/logger"
)

// Logger writes a concise structured access log for each request. Asset and polling
// traffic is logged at debug so the kiosk log stays readable.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if cache := c.Writer.Header().Get(CacheSourceHeader); cache != "" {
			fields = append(fields, zap.String("cache", cache))
		}

		log := logger.WithModule("http")
		if method == "GET" && c.Writer.Status() < 400 {
			log.Debug("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}
