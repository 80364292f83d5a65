package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hushh-labs/consent-core/internal/middleware"
	"github.com/hushh-labs/consent-core/internal/ratelimit"
	"github.com/hushh-labs/consent-core/pkg/metrics"
)

// NewRouter builds the gin engine for the consent core, following
// cmd/web/main.go's setupRouter idiom: gin.New() + Recovery + RequestID +
// Logger + CORS, grouped route registration.
func NewRouter(h *Handlers, limiters *ratelimit.Limiters, frontendURL string) *gin.Engine {
	metrics.RegisterMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing(h.Tracer))
	router.Use(middleware.Logger(h.Logger))

	corsConfig := cors.DefaultConfig()
	if frontendURL != "" {
		corsConfig.AllowOrigins = []string{frontendURL}
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rateLimit := func(class ratelimit.Class) gin.HandlerFunc {
		return ginRateLimit(limiters, class)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/request-consent", rateLimit(ratelimit.ClassConsentRequest), h.RequestConsent)
		v1.GET("/list-scopes", h.ListScopes)
	}

	consent := router.Group("/api/consent")
	{
		consent.POST("/issue-token", rateLimit(ratelimit.ClassConsentAction), h.IssueToken)
		consent.POST("/validate", rateLimit(ratelimit.ClassTokenValidation), h.Validate)
		consent.GET("/active", rateLimit(ratelimit.ClassTokenValidation), h.Active)
		consent.GET("/history", rateLimit(ratelimit.ClassTokenValidation), h.History)
		consent.POST("/logout", rateLimit(ratelimit.ClassConsentAction), h.Logout)
		consent.GET("/events/:user_id", h.Events)
		consent.GET("/events/:user_id/poll/:request_id", h.EventsPoll)
	}

	return router
}

// ginRateLimit adapts internal/ratelimit's net/http middleware shape into a
// gin.HandlerFunc, keyed by the core's rate-limit key contract.
func ginRateLimit(limiters *ratelimit.Limiters, class ratelimit.Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.DefaultKeyFunc(c.Request)
		if !limiters.Allow(class, key) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

