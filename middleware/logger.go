package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TIANLI0/StrokeCut/utils"
)

// Logger Zap日志中间件；蚂蚁线帧轮询频繁，只记 debug 级别
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
		}

		logger := utils.Named("http")
		if strings.HasSuffix(path, "/overlay") || strings.HasSuffix(path, "/stroke/points") {
			logger.Debug("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}
