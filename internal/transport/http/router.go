package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"neonbrush/fileserver/internal/config"
	"neonbrush/fileserver/internal/health"
	"neonbrush/fileserver/internal/middleware"
	"neonbrush/fileserver/internal/monitoring"
	"neonbrush/fileserver/internal/service"
	"neonbrush/fileserver/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	files  *service.FileService
	emails *service.EmailService
	hub    *websocket.Hub
	logger *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	FileService  *service.FileService
	EmailService *service.EmailService
	WebSocketHub *websocket.Hub
	Metrics      *monitoring.Metrics
	Health       *health.Handler
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Forwarded-For"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	handler := &Handler{
		files:  deps.FileService,
		emails: deps.EmailService,
		hub:    deps.WebSocketHub,
		logger: deps.Logger,
	}

	// 健康检查（就绪检查会探测存储目录和队列文档）
	if deps.Health != nil {
		router.GET("/healthz", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/readyz", gin.WrapF(deps.Health.ReadyEndpoint))
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// WebSocket
	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	// ========== Files API ==========
	api := router.Group("/api/files")
	{
		api.GET("/health", handler.health)
		api.GET("/all", handler.listFiles)
		api.GET("/origins", handler.listOrigins)
		api.POST("/upload",
			middleware.UploadBodyLimit(deps.Config.Storage.MaxUploadSize),
			handler.uploadFile)
		api.GET("/:filename", handler.downloadFile)
		api.DELETE("/:filename", handler.deleteFile)

		// ========== Email Routes ==========
		email := api.Group("/email")
		email.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
		{
			email.POST("/send", handler.sendEmail)
			email.GET("/status/:jobID", handler.emailStatus)
			email.GET("/queue", handler.queueStats)
			email.GET("/recent", handler.recentRecipients)
		}
	}

	return router
}
