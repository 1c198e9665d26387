package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether one backing dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Options configures NewEngine.
type Options struct {
	ServiceName string
	JWTSecret   string
	Logger      *zap.Logger
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Readiness is keyed by dependency name.
	Readiness map[string]ReadinessCheck
}

// NewEngine builds the gin engine with middleware and all routes.
func NewEngine(h *Handler, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "payment-settlement"
	}

	r := gin.New()
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(RequestID())
	r.Use(Logger(opts.Logger))
	r.Use(Recovery(opts.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/ready", readyHandler(opts.Readiness))
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	payments := r.Group("/api/payments")
	{
		payments.POST("/return", h.Return)
		payments.GET("/cancel", h.Cancel)
		payments.POST("/cancel", h.Cancel)
		payments.POST("/webhook/:type", h.Webhook)

		protected := payments.Group("")
		protected.Use(JWTAuth(opts.JWTSecret))
		protected.POST("/prepare", h.Prepare)
		protected.GET("", h.List)
		protected.GET("/:pgOrderId", h.Get)
		protected.POST("/:pgOrderId/cancel", h.CancelOwned)
	}
	return r
}

func readyHandler(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
