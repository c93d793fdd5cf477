package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/format-converter/api/handlers"
	"github.com/feichai0017/format-converter/api/middleware"
	"github.com/feichai0017/format-converter/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger) {
	// 全局中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS())

	r.POST("/convert", h.Conversion.ConvertFile)
}
