package handler

import (
	"net/http"
	"time"

	"doubtiq-go/internal/middleware"
	"doubtiq-go/internal/model"
	"doubtiq-go/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// formOverheadBytes leaves room for multipart headers around an upload.
const formOverheadBytes = 1 << 20

// RouterDeps is everything the HTTP layer needs.
type RouterDeps struct {
	AuthService  service.AuthService
	ChatService  service.ChatService
	DoubtService service.DoubtService
	AdminService service.AdminService

	ClientOrigin   string
	MaxUploadBytes int64
	AuthRateRPS    float64
	AuthRateBurst  int
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = service.DefaultMaxAttachmentBytes
	}
	if deps.AuthRateRPS <= 0 {
		deps.AuthRateRPS = 5
	}
	if deps.AuthRateBurst <= 0 {
		deps.AuthRateBurst = 10
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		gin.Recovery(),
		middleware.Metrics(),
		cors.New(corsConfig(deps.ClientOrigin)),
		middleware.BodyLimit(deps.MaxUploadBytes+formOverheadBytes),
	)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Doubtiq API is running")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := NewAuthHandler(deps.AuthService)
	chatHandler := NewChatHandler(deps.ChatService, deps.MaxUploadBytes)
	streamHandler := NewChatStreamHandler(deps.ChatService, deps.ClientOrigin)
	doubtHandler := NewDoubtHandler(deps.DoubtService)
	adminHandler := NewAdminHandler(deps.AdminService)
	requireAuth := middleware.RequireAuth(deps.AuthService)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/status", middleware.OptionalAuth(deps.AuthService), status)

		auth := apiV1.Group("/auth")
		{
			limiter := middleware.NewRateLimiter(deps.AuthRateRPS, deps.AuthRateBurst).Handler()
			auth.POST("/register", limiter, authHandler.Register)
			auth.POST("/login", limiter, authHandler.Login)
			auth.POST("/forgot-password", limiter, authHandler.ForgotPassword)
			auth.POST("/verify-otp", limiter, authHandler.VerifyOTP)
			auth.POST("/reset-password", limiter, authHandler.ResetPassword)
			auth.GET("/me", requireAuth, authHandler.Me)
		}

		chat := apiV1.Group("/chat")
		chat.Use(requireAuth)
		{
			chat.POST("/new", chatHandler.CreateChat)
			chat.GET("/history", chatHandler.ListChats)
			chat.GET("/:id", chatHandler.GetChat)
			chat.POST("/:id/message", chatHandler.SendMessage)
			chat.PATCH("/:id/rename", chatHandler.RenameChat)
			chat.DELETE("/:id", chatHandler.DeleteChat)
			chat.GET("/:id/messages/:messageId/attachment", chatHandler.AttachmentURL)
			chat.GET("/:id/stream", streamHandler.Handle)
		}

		doubt := apiV1.Group("/doubt")
		doubt.Use(requireAuth)
		{
			doubt.POST("/ask", doubtHandler.Ask)
			doubt.GET("/history", doubtHandler.History)
			doubt.GET("/search", doubtHandler.Search)
		}

		admin := apiV1.Group("/admin")
		admin.Use(requireAuth, middleware.RequireRole(model.RoleAdmin))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.PATCH("/users/:id/active", adminHandler.SetUserActive)
		}
	}
	return r
}

// status reports who, if anyone, is calling.
func status(c *gin.Context) {
	body := gin.H{"code": http.StatusOK, "message": "Doubtiq API is running", "authenticated": false}
	if user, ok := middleware.CurrentUser(c); ok {
		body["authenticated"] = true
		body["user"] = service.NewUserView(user)
	}
	c.JSON(http.StatusOK, body)
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = []string{origin}
	cfg.AllowCredentials = true
	return cfg
}
