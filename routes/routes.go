package routes

import (
	"time"

	"homeglow/handlers"
	"homeglow/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.Health)
}

// RegisterBookingRoutes sets up the booking wizard endpoints. Guests may use every
// route except listing and migration, which need an authenticated client.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	booking := r.Group("/api/booking")

	optional := booking.Group("")
	optional.Use(middleware.JWTAuthClientMiddleware(hb.JWTSecret, true))
	{
		optional.POST("/sessions", hb.CreateSession)
		optional.GET("/sessions/:sessionID", hb.GetSession)
		optional.DELETE("/sessions/:sessionID", hb.DeleteSession)

		optional.PUT("/sessions/:sessionID/service", hb.SelectService)
		optional.PUT("/sessions/:sessionID/address", hb.SelectAddress)
		optional.PUT("/sessions/:sessionID/guest-address", hb.SelectGuestAddress)
		optional.PUT("/sessions/:sessionID/schedule", hb.SelectSchedule)
		optional.PUT("/sessions/:sessionID/contractor", hb.SelectContractor)
		optional.PUT("/sessions/:sessionID/step", hb.RewindStep)

		optional.POST("/sessions/:sessionID/promo-code", hb.ApplyPromoCode)
		optional.DELETE("/sessions/:sessionID/promo-code", hb.RemovePromoCode)
		optional.POST("/sessions/:sessionID/gift-card", hb.ApplyGiftCard)
		optional.DELETE("/sessions/:sessionID/gift-card", hb.RemoveGiftCard)
		optional.GET("/sessions/:sessionID/quote", hb.Quote)
		optional.POST("/sessions/:sessionID/payment", hb.PreparePayment)
		optional.POST("/sessions/:sessionID/confirm", hb.ConfirmBooking)
	}

	protected := booking.Group("")
	protected.Use(middleware.JWTAuthClientMiddleware(hb.JWTSecret, false))
	{
		protected.GET("/sessions", hb.ListActiveSessions)
		protected.POST("/sessions/:sessionID/migrate", hb.MigrateSession)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterBookingRoutes(r, hb)
}
