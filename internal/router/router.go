package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepforge/prepforge-backend/internal/config"
	"github.com/prepforge/prepforge-backend/internal/handler"
	"github.com/prepforge/prepforge-backend/internal/middleware"
	"github.com/prepforge/prepforge-backend/internal/response"
	"github.com/prepforge/prepforge-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt      *handler.AttemptHandler
	Channel      *handler.ChannelHandler
	WeakQuestion *handler.WeakQuestionHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokenService *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for attempt creation (30 requests per minute per IP).
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Attempt Group ──────────────────────────────────────────────
	attempts := router.Group("/api/v1/attempts")
	{
		attempts.POST("", startLimiter.Middleware(), handlers.Attempt.StartAttempt)
		attempts.POST("/weak", startLimiter.Middleware(), handlers.Attempt.StartWeakAttempt)
		attempts.GET("", handlers.Attempt.ListAttempts)
		attempts.GET("/:id/paper", handlers.Attempt.GetPaper)
		attempts.GET("/:id/state", handlers.Attempt.GetState)
		attempts.PATCH("/:id/answers", handlers.Attempt.SubmitAnswers)
		attempts.POST("/:id/finish", handlers.Attempt.FinishAttempt)
		attempts.GET("/:id", handlers.Attempt.GetResult)
	}

	// ─── 2. Weak Questions ─────────────────────────────────────────────
	router.GET("/api/v1/weak-questions", handlers.WeakQuestion.ListWeakQuestions)

	// ─── 3. WebSocket Group (Channel Token) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireChannelToken(tokenService))
	{
		ws.GET("/attempts/:id/channel", handlers.Channel.AttemptChannel)
	}

	return router
}
