package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/vintage-store-backend/config"
	"github.com/ikkim/vintage-store-backend/internal/app/controller"
	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	authController        *controller.AuthController
	cartController        *controller.CartController
	reservationController *controller.ReservationController
	authMiddleware        *middleware.AuthMiddleware
	gatherer              prometheus.Gatherer
	config                *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	cartController *controller.CartController,
	reservationController *controller.ReservationController,
	authMiddleware *middleware.AuthMiddleware,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:        authController,
		cartController:        cartController,
		reservationController: reservationController,
		authMiddleware:        authMiddleware,
		gatherer:              gatherer,
		config:                cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Vintage store API is running",
		})
	})

	if r.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	admin := string(model.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.GetMe)
		}

		cart := v1.Group("/cart")
		cart.Use(r.authMiddleware.OptionalAuthenticate(), r.authMiddleware.RequireOwner())
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("", r.cartController.AddToCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.PUT("/:id", r.cartController.UpdateCartItem)
			cart.DELETE("/:id", r.cartController.RemoveFromCart)
		}
		v1.POST("/cart/migrate", r.authMiddleware.Authenticate(), r.cartController.MigrateGuestCart)

		reservations := v1.Group("/reservations")
		{
			reservations.POST("",
				r.authMiddleware.OptionalAuthenticate(),
				r.authMiddleware.RequireOwner(),
				r.reservationController.Reserve,
			)
			reservations.GET("/sweep-expired", r.reservationController.SweepExpired)
			reservations.GET("/products/:id", r.reservationController.GetProductReservation)

			managed := reservations.Group("")
			managed.Use(r.authMiddleware.Authenticate(), r.authMiddleware.RequireRole(admin))
			{
				managed.GET("", r.reservationController.ListReservations)
				managed.POST("/confirm", r.reservationController.Confirm)
				managed.POST("/cancel", r.reservationController.Cancel)
				managed.POST("/pause", r.reservationController.TogglePause)
				managed.POST("/mark-sold", r.reservationController.MarkSold)
				managed.POST("/revert-available", r.reservationController.RevertToAvailable)
			}
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+middleware.SessionHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
