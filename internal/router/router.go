package router

import (
	"fmt"
	"net/http"

	"github.com/pixgo-gateway/internal/cache"
	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/http/handlers/public"
	"github.com/pixgo-gateway/internal/http/handlers/shared"
	"github.com/pixgo-gateway/internal/http/response"
	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the HTTP routes
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	handler := public.New(c)
	createRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:create_payment", cache.Prefix()),
		WindowSeconds: cfg.RateLimit.CreatePayment.WindowSeconds,
		MaxRequests:   cfg.RateLimit.CreatePayment.MaxRequests,
	}

	r.Use(gin.CustomRecovery(recoverWithEnvelope))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/", handler.Health)
	r.GET("/test-db", handler.TestDB)

	api := r.Group("/api")
	{
		api.POST("/create-payment", RateLimitMiddleware(cache.Client(), createRule, KeyByIP), handler.CreatePayment)
		api.GET("/payment/:id", handler.GetPayment)
		api.GET("/payment/:id/status", handler.GetPaymentStatus)
		api.GET("/payment/:id/qrcode", handler.GetPaymentQRCode)
	}

	r.POST("/webhook/:provider", handler.ProviderWebhook)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Route not found: "+c.Request.URL.Path)
	})
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, "Method not allowed")
	})

	return r
}

func recoverWithEnvelope(c *gin.Context, recovered interface{}) {
	shared.RespondError(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error",
		fmt.Errorf("panic: %v", recovered))
}
