package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/format-converter/pkg/logger"
)

// Logger 访问日志
func Logger(log logger.Logger) gin.HandlerFunc {
	ctxLog := logger.NewContextLogger(log)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int("bytes", c.Writer.Size()),
			logger.Duration("latency", time.Since(start)),
			logger.String("clientIP", c.ClientIP()),
		}

		l := ctxLog.FromContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			l.Warn("Request completed", fields...)
			return
		}
		l.Info("Request completed", fields...)
	}
}
