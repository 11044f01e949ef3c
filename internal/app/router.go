package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"travel/internal/handler"
	"travel/internal/middleware"
	internalRedis "travel/internal/redis"
	"travel/internal/telemetry"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler *handler.PaymentHandler
	ListingHandler *handler.ListingHandler
	BookingHandler *handler.BookingHandler
	ReviewHandler  *handler.ReviewHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Logger         *zap.Logger
	Metrics        *telemetry.Metrics
	Gatherer       prometheus.Gatherer
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.CORSMiddleware())
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics(deps.Metrics))
	var idempotency middleware.IdempotencyStore
	if deps.RedisClient != nil {
		idempotency = internalRedis.NewIdempotencyStore(deps.RedisClient)
	}
	router.Use(middleware.IdempotencyMiddleware(idempotency, deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("/initiate", deps.PaymentHandler.InitiatePayment)
			payments.GET("/verify", deps.PaymentHandler.VerifyPayment)
			payments.GET("", deps.PaymentHandler.ListPayments)
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
		}

		listings := v1.Group("/listings")
		{
			listings.POST("", deps.ListingHandler.CreateListing)
			listings.GET("", deps.ListingHandler.ListListings)
			listings.GET("/:id", deps.ListingHandler.GetListing)
			listings.PUT("/:id", deps.ListingHandler.ReplaceListing)
			listings.PATCH("/:id", deps.ListingHandler.PatchListing)
			listings.DELETE("/:id", deps.ListingHandler.DeleteListing)
			listings.GET("/:id/bookings", deps.ListingHandler.ListListingBookings)
			listings.GET("/:id/reviews", deps.ListingHandler.ListListingReviews)
		}

		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.ListBookings)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.PUT("/:id", deps.BookingHandler.ReplaceBooking)
			bookings.PATCH("/:id", deps.BookingHandler.PatchBooking)
			bookings.DELETE("/:id", deps.BookingHandler.DeleteBooking)
		}

		reviews := v1.Group("/reviews")
		{
			reviews.POST("", deps.ReviewHandler.CreateReview)
			reviews.GET("", deps.ReviewHandler.ListReviews)
			reviews.GET("/:id", deps.ReviewHandler.GetReview)
			reviews.PUT("/:id", deps.ReviewHandler.ReplaceReview)
			reviews.PATCH("/:id", deps.ReviewHandler.PatchReview)
			reviews.DELETE("/:id", deps.ReviewHandler.DeleteReview)
		}
	}

	return router
}
