package handler

import (
	"net/http"
	"time"

	"github.com/Baaaki/imf-gadgets/internal/config"
	"github.com/Baaaki/imf-gadgets/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything NewRouter mounts
type Handlers struct {
	Auth      *AuthHandler
	Gadgets   *GadgetHandler
	EventFeed *EventFeedHandler

	// AuthLimiter guards /auth; nil disables rate limiting
	AuthLimiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.HSTSMiddleware(cfg.IsProduction()))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Public auth routes
	auth := router.Group("/auth")
	if h.AuthLimiter != nil {
		auth.Use(h.AuthLimiter.Middleware())
	}
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}

	// Listing is public, every mutation needs a bearer token
	router.GET("/gadgets", h.Gadgets.ListGadgets)

	protected := router.Group("/gadgets")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		protected.POST("", h.Gadgets.CreateGadget)
		protected.PATCH("/:id", h.Gadgets.UpdateGadget)
		protected.DELETE("/:id", h.Gadgets.DecommissionGadget)
		protected.POST("/:id/self-destruct", h.Gadgets.SelfDestruct)
	}

	// Browsers cannot set headers on a websocket handshake, so the feed also
	// takes the token from ?access_token=
	if h.EventFeed != nil {
		router.GET("/gadgets/events",
			middleware.TokenFromQuery(middleware.AccessTokenParam),
			middleware.AuthMiddleware(cfg.JWTSecret),
			h.EventFeed.HandleEvents,
		)
	}

	return router
}
