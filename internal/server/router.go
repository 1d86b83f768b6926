package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/handlers"
	"github.com/yungbote/helpdesk-backend/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins []string

	RequestLogger     *middleware.RequestLogger
	StatusHandler     *handlers.StatusHandler
	ChatHandler       *handlers.ChatHandler
	TicketHandler     *handlers.TicketHandler
	EscalationHandler *handlers.EscalationHandler
	WhatsAppHandler   *handlers.WhatsAppHandler
	VoiceHandler      *handlers.VoiceHandler
	EmailHandler      *handlers.EmailHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cfg.RequestLogger.Log())

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/status", cfg.StatusHandler.Status)

	api := router.Group("/api")
	{
		// Assistant
		api.POST("/chat", cfg.ChatHandler.Chat)
		api.GET("/knowledge/search", cfg.ChatHandler.Search)
		api.GET("/knowledge/categories", cfg.ChatHandler.Categories)
		api.POST("/knowledge/articles", cfg.ChatHandler.AddArticle)

		// Tickets
		api.POST("/tickets", cfg.TicketHandler.Create)
		api.GET("/tickets", cfg.TicketHandler.List)
		api.GET("/tickets/stats", cfg.TicketHandler.Stats)
		api.GET("/tickets/:key", cfg.TicketHandler.Get)
		api.PATCH("/tickets/:key", cfg.TicketHandler.Update)
		api.POST("/tickets/:key/messages", cfg.TicketHandler.AddMessage)

		// Escalations
		api.GET("/escalations", cfg.EscalationHandler.List)
		api.GET("/escalations/stats", cfg.EscalationHandler.Stats)
		api.GET("/escalations/:key", cfg.EscalationHandler.Get)
		api.PATCH("/escalations/:key", cfg.EscalationHandler.Update)
		api.DELETE("/escalations/:key", cfg.EscalationHandler.Delete)
		api.POST("/escalations/:key/reply", cfg.EscalationHandler.Reply)
		api.POST("/escalations/:key/messages", cfg.EscalationHandler.AddClientMessage)
	}

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/twilio/whatsapp", cfg.WhatsAppHandler.Webhook)
		webhooks.POST("/twilio/voice", cfg.VoiceHandler.Incoming)
		webhooks.POST("/twilio/voice/collect", cfg.VoiceHandler.Collect)
		webhooks.POST("/email/inbound", cfg.EmailHandler.Inbound)
	}

	return router
}
