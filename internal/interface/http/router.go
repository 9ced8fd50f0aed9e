package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-helloworld/internal/infra/config"
	"github.com/yanqian/ai-helloworld/pkg/metrics"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, reg *metrics.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		errorHandlingMiddleware(handler.logger),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger, reg),
	)

	if reg != nil {
		router.GET("/metrics", gin.WrapH(reg.Handler()))
	}

	api := router.Group("/api/v1")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/send-code", handler.SendCode)
			authRoutes.POST("/register", handler.Register)
			authRoutes.POST("/login", handler.Login)
			authRoutes.POST("/reset-password", handler.ResetPassword)
		}

		protected := api.Group("/")
		protected.Use(authMiddleware(handler.authSvc))
		{
			protected.GET("/auth/me", handler.Profile)

			protected.GET("/config", handler.GetConfig)
			protected.POST("/config", handler.SetConfig)
			protected.POST("/config/test", handler.TestConfig)

			protected.POST("/documents/upload", handler.UploadDocument)
			protected.GET("/documents/status", handler.DocumentStatus)
			protected.POST("/documents/clear", handler.ClearDocuments)

			protected.POST("/chat/message", handler.ChatMessage)
			protected.GET("/chat/conversations", handler.ListConversations)
			protected.DELETE("/chat/conversations/:id", handler.DeleteConversation)
			protected.PATCH("/chat/conversations/:id", handler.RenameConversation)
			protected.GET("/chat/conversations/:id/health", handler.ConversationHealth)
			protected.POST("/chat/conversations/cleanup-expired", handler.CleanupExpiredConversations)

			protected.GET("/rate-limit/quota", handler.RateLimitQuota)
		}
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
