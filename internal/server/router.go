package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"recipe-server/internal/auth"
	"recipe-server/internal/handler"
	"recipe-server/internal/hub"
	"recipe-server/internal/middleware"
	"recipe-server/internal/store"
)

type Deps struct {
	Store         *store.Store
	AccessConfig  auth.TokenConfig
	RefreshConfig auth.TokenConfig
	Validator     *auth.Validator
	// Router is the socket registry and topic table shared with the HTTP handlers.
	// A fresh one is created when nil.
	Router      *hub.Router
	AuthLimiter *middleware.RateLimiter

	CloseGrace  time.Duration
	AuthTimeout time.Duration
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sockets := deps.Router
	if sockets == nil {
		sockets = hub.NewRouter(hub.New(), hub.NewTopics())
	}
	limiter := deps.AuthLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(10, time.Minute)
	}
	requireAuth := middleware.RequireAuth(deps.Validator, deps.Store)

	authHandler := &handler.AuthHandler{
		Store:         deps.Store,
		AccessConfig:  deps.AccessConfig,
		RefreshConfig: deps.RefreshConfig,
		Validator:     deps.Validator,
		Sockets:       sockets,
	}
	authGroup := r.Group("/auth")
	authGroup.POST("/register", middleware.RateLimit(limiter), authHandler.Register)
	authGroup.POST("/login", middleware.RateLimit(limiter), authHandler.Login)
	authGroup.POST("/refresh-token", authHandler.RefreshToken)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)
	authGroup.POST("/logout-all", requireAuth, authHandler.LogoutAll)

	deviceHandler := &handler.DeviceHandler{Store: deps.Store}
	r.POST("/firebase/send-token", deviceHandler.SendToken)

	protected := r.Group("/")
	protected.Use(requireAuth)

	userHandler := &handler.UserHandler{Store: deps.Store}
	protected.GET("/users/me", userHandler.Me)
	protected.PUT("/users/me/hydration", userHandler.SetHydration)

	recipeHandler := &handler.RecipeHandler{Store: deps.Store, Notifier: sockets}
	protected.POST("/recipes", recipeHandler.Create)
	protected.GET("/recipes/:id", recipeHandler.Get)
	protected.PUT("/recipes/:id", recipeHandler.Update)
	protected.GET("/recipes/:id/reviews", recipeHandler.ListReviews)
	protected.POST("/recipes/:id/reviews", recipeHandler.AddReview)

	wsHandler := &handler.WebSocketHandler{
		Router:      sockets,
		Validator:   deps.Validator,
		CloseGrace:  deps.CloseGrace,
		AuthTimeout: deps.AuthTimeout,
	}
	r.GET("/ws", wsHandler.Serve)

	return r
}
