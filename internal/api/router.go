package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"fieldservice-backend/config"
	"fieldservice-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, metricsHandler http.Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimit := cfg.RateLimitPerSec
	if rateLimit <= 0 {
		rateLimit = 10
	}
	rateLimiter := mw.RateLimiter(rate.Limit(rateLimit), 5)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/jobs", h.GetJobs)
		api.GET("/jobs/:kind/:id", h.GetJob)
		api.GET("/jobs/:kind/:id/history", h.GetJobHistory)

		api.POST("/jobs/:kind/:id/start", h.StartJob)
		api.POST("/jobs/:kind/:id/complete", h.CompleteJob)
		api.POST("/jobs/:kind/:id/recall", h.RecallJob)
		api.POST("/refresh", h.Refresh)

		api.GET("/connection", h.GetConnection)
		api.GET("/categories", caching, h.GetCategories)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
