package routes

import (
	"net/http"

	"realtime-chat-api/internal/auth"
	"realtime-chat-api/internal/config"
	"realtime-chat-api/internal/handlers"
	"realtime-chat-api/internal/middleware"
	"realtime-chat-api/internal/realtime"
	"realtime-chat-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config        config.Config
	Authenticator auth.Authenticator
	Tokens        *auth.Tokens
	Users         *store.UserStore
	Messages      store.MessageStore
	Hub           *realtime.Hub
	Log           *zap.Logger
}

func SetupRoutes(d Deps) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens, d.Log)
	userHandler := handlers.NewUserHandler(d.Users, d.Hub.Presence(), d.Log)
	conversationHandler := handlers.NewConversationHandler(d.Messages, d.Users, d.Hub.Presence(), d.Config.HistoryMaxLimit, d.Log)
	messageHandler := handlers.NewMessageHandler(d.Messages, d.Config.HistoryLimit, d.Config.HistoryMaxLimit, d.Log)
	wsHandler := handlers.NewWSHandler(d.Hub, handlers.WSConfig{
		AllowedOrigins: d.Config.AllowedOrigins,
		SendQueueSize:  d.Config.SendQueueSize,
		ReadLimit:      d.Config.ReadLimit,
		WriteWait:      d.Config.WriteWait,
	}, d.Log)

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"message":     "Realtime Chat API is running",
			"connections": d.Hub.Registry().Len(),
			"online":      len(d.Hub.Presence().Online()),
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
	}

	authMiddleware := middleware.JWTAuthMiddleware(d.Authenticator)

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(authMiddleware)
	{
		protectedRoutes.GET("/users/online", userHandler.GetOnlineUsers)
		protectedRoutes.GET("/users/search", userHandler.SearchUsers)
		protectedRoutes.GET("/conversations", conversationHandler.GetConversations)
		protectedRoutes.GET("/rooms/:room/messages", messageHandler.GetRoomHistory)
		protectedRoutes.GET("/messages/:otherUserId", messageHandler.GetConversation)
		protectedRoutes.POST("/messages/read", messageHandler.MarkRead)
	}

	// WebSocket endpoint; the token may come from ?token= since browsers cannot set headers here
	ginRouter.GET("/ws", authMiddleware, wsHandler.Serve)

	return ginRouter
}

// WithCORS wraps the router with the configured CORS policy.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(h)
}
