package handlers

import (
	"net/http"
	"time"

	"bonus-hunt/internal/auth"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Hunts          *HuntHandler
	Widget         *WidgetHandler
	AllowedOrigins []string
	Logger         *log.Logger
}

// NewRouter wires the operator API, the public widget surface and the
// health check.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger.WithPrefix("http")))

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || containsWildcard(cfg.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Widget routes (public, addressed by hunt id)
	widgetRoutes := router.Group("/widget/:huntId")
	{
		widgetRoutes.GET("/state", cfg.Widget.GetState)
		widgetRoutes.GET("/ws", cfg.Widget.Stream)
		widgetRoutes.GET("/events", cfg.Widget.Events)
	}

	// Operator routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(cfg.Logger))
	{
		api.POST("/hunts", cfg.Hunts.CreateHunt)
		api.GET("/hunts/active", cfg.Hunts.GetActiveHunt)
		api.POST("/hunts/:id/start", cfg.Hunts.StartOpening)
		api.POST("/hunts/:id/complete", cfg.Hunts.CompleteHunt)
		api.POST("/hunts/:id/slots", cfg.Hunts.AddSlot)

		api.POST("/slots/:id/open", cfg.Hunts.OpenSlot)
		api.DELETE("/slots/:id", cfg.Hunts.DeleteSlot)
	}

	return router
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
