package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexusmail/agent/internal/config"
	"nexusmail/agent/internal/health"
	"nexusmail/agent/internal/inbox"
	"nexusmail/agent/internal/middleware"
	"nexusmail/agent/internal/monitoring"
	"nexusmail/agent/internal/persona"
	"nexusmail/agent/internal/store"
	"nexusmail/agent/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	Store         *store.Store
	Synchronizer  *inbox.Synchronizer
	DomainLister  DomainLister
	Personas      *persona.Generator
	Metrics       *monitoring.Metrics
	HealthChecker *health.HealthChecker
	WebSocketHub  *websocket.Hub
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics.RecordPanic))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.BusinessMetrics(deps.Metrics))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 允许所有来源时必须关闭凭证支持
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		store:    deps.Store,
		inbox:    deps.Synchronizer,
		domains:  deps.DomainLister,
		personas: deps.Personas,
		log:      deps.Logger,
	}

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"checks": deps.HealthChecker.CheckHealth(),
		})
	})
	router.GET("/live", gin.WrapH(deps.HealthChecker.Handler()))
	router.GET("/ready", gin.WrapH(deps.HealthChecker.Handler()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	// WebSocket 事件推送
	router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Mailbox Routes ==========
		mailboxRoutes := v1.Group("/mailboxes")
		{
			mailboxRoutes.GET("", handler.listMailboxes)
			mailboxRoutes.POST("", handler.createMailbox)
			mailboxRoutes.POST("/custom", handler.createCustomMailbox)
			mailboxRoutes.POST("/:id/activate", handler.activateMailbox)
			mailboxRoutes.DELETE("/:id", handler.deleteMailbox)
		}

		v1.GET("/domains", handler.listDomains)

		// ========== Message Routes ==========
		messageRoutes := v1.Group("/messages")
		{
			messageRoutes.GET("", handler.listMessages)
			messageRoutes.DELETE("", handler.deleteAllMessages)
			messageRoutes.GET("/:id", handler.getMessage)
			messageRoutes.DELETE("/:id", handler.deleteMessage)
		}

		v1.DELETE("/selection", handler.clearSelection)

		// ========== Persona Routes ==========
		personaRoutes := v1.Group("/persona")
		{
			personaRoutes.GET("", handler.generatePersona)
			personaRoutes.POST("/script", handler.personaScript)
			personaRoutes.POST("/classify", handler.classifyFields)
		}
	}

	return router
}
