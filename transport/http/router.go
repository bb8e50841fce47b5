package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/layer-3/bustrack/internal/metrics"
	"github.com/layer-3/bustrack/ports"
	"github.com/layer-3/bustrack/service"
)

// Options carries the router's ambient dependencies
type Options struct {
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer // Served on /metrics when set
	RateLimit rate.Limit          // Per-IP requests per second on /auth; zero disables limiting
	RateBurst int
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, fleetService *service.FleetService, verifier ports.TokenVerifier, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestID(), AccessLog(logger.Named("http"), opts.Metrics), Recovery(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	authHandlers := NewAuthHandlers(authService)
	fleetHandlers := NewFleetHandlers(fleetService)
	requireBearer := AuthMiddleware(verifier)

	// Auth routes
	auth := router.Group("/auth")
	if opts.RateLimit > 0 {
		auth.Use(RateLimit(NewIPRateLimiter(opts.RateLimit, opts.RateBurst), opts.Metrics))
	}
	{
		auth.POST("/authenticate", authHandlers.Authenticate)
		auth.POST("/set-new-password", authHandlers.SetNewPassword)
		auth.POST("/refresh-token", authHandlers.RefreshToken)
		auth.POST("/forgot-password", authHandlers.ForgotPassword)
		auth.POST("/confirm-forgot-password", authHandlers.ConfirmForgotPassword)
		auth.POST("/change-password", authHandlers.ChangePassword)
		auth.GET("/getdetails", requireBearer, authHandlers.GetDetails)
		auth.POST("/deactivate", requireBearer, authHandlers.Deactivate)
	}

	// Protected fleet routes
	api := router.Group("/api")
	api.Use(requireBearer)
	{
		api.GET("/bus/buses", fleetHandlers.ListBuses)
		api.POST("/bus/add-bus", fleetHandlers.AddBus)
		api.GET("/driver/get-bus", fleetHandlers.GetBus)
		api.POST("/driver/store-location", fleetHandlers.StoreLocation)
		api.GET("/user/get-locations", fleetHandlers.ListLocations)
		api.POST("/user/add-user", fleetHandlers.AddUser)
	}

	return router
}
