package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/handler"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/middleware"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Portal *handler.PortalHandler
	WS     *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Session starts fan out to the upstream exam API; keep a per-IP lid on them.
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── Student Group (JWT) ───────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(cfg.JWTSecret))
	{
		studentAPI.GET("/periods", handlers.Portal.GetPeriods)

		studentAPI.POST("/exams/:exam_id/session", startLimiter.Middleware(), handlers.Portal.StartSession)
		studentAPI.GET("/exams/:exam_id/session", handlers.Portal.GetState)
		studentAPI.DELETE("/exams/:exam_id/session", handlers.Portal.CloseSession)
		studentAPI.PUT("/exams/:exam_id/answer", handlers.Portal.SetAnswer)
		studentAPI.POST("/exams/:exam_id/flag", handlers.Portal.ToggleFlag)
		studentAPI.PUT("/exams/:exam_id/position", handlers.Portal.Navigate)
		studentAPI.POST("/exams/:exam_id/submit", handlers.Portal.SubmitSession)
	}

	// ─── WebSocket Group (Student WS Auth via ?token=) ─────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentJWT(cfg.JWTSecret))
	{
		ws.GET("/student/exams/:exam_id/countdown", handlers.WS.CountdownStream)
	}

	return router
}
