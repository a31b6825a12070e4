package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"fleet-rental-backend/config"
	"fleet-rental-backend/internal/metrics"
	"fleet-rental-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. m may be nil when
// metrics are disabled.
func NewRouter(h *Handler, cfg *config.Config, rc *mw.ResponseCache, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), mw.RequestID())

	if m != nil {
		r.Use(mw.Metrics(m))
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	limit := rate.Limit(cfg.Server.RateLimitPerSec)
	if limit <= 0 {
		limit = rate.Limit(10)
	}
	rateLimiter := mw.RateLimiter(limit, 5, cfg.Server.RequestIPHeader)
	caching := rc.Handler()

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Pricing
		api.GET("/rental-modes", caching, h.GetRentalModes)
		api.GET("/cars/:car_id/quote", caching, h.GetQuote)
		api.POST("/cars/:car_id/quote/step", h.PostQuoteStep)

		// Mechanic
		mech := api.Group("/mechanic")
		mech.GET("/vehicles", caching, h.ListVehicles)
		mech.GET("/vehicles/search", h.SearchVehicles)
		mech.GET("/delivery", h.GetDelivery)
		mech.POST("/vehicles/:car_id/reserve", h.Reserve)
		mech.POST("/vehicles/:car_id/accept-delivery", h.AcceptDelivery)
		mech.POST("/start-delivery", h.StartDelivery)
		mech.POST("/start-check", h.StartCheck)
		mech.POST("/cancel-check", h.CancelCheck)
		mech.POST("/complete-delivery", h.CompleteDelivery)
		mech.POST("/complete-check", h.CompleteCheck)
		mech.POST("/photos/:flow/:phase", h.UploadPhotos)

		// Vehicle actions for the active rental
		rental := api.Group("/rental")
		rental.POST("/pause", h.Pause)
		rental.POST("/resume", h.Resume)
		rental.POST("/lock", h.Lock)
		rental.POST("/unlock", h.Unlock)
		rental.GET("/last-action", h.GetLastAction)

		api.GET("/actions", h.GetActions)
		api.GET("/events", h.StreamEvents)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
