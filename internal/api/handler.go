package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shop-service/config"
	"shop-service/internal/apperr"
	"shop-service/internal/crud"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to the acting user.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string, allowInactive bool) (*models.User, error)
}

// RateLimiter counts hits per bucket. redisclient.Client satisfies it.
type RateLimiter interface {
	Allow(ctx context.Context, bucket string, limit int, window time.Duration) (bool, error)
}

// SocketServer upgrades a request into a realtime connection for userID.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the domain services behind the routes.
type Services struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Wishlist  *service.WishlistService
	Addresses *service.AddressService
	Cart      *service.CartService
	Orders    *service.OrderService
	Reviews   *service.ReviewService
	Inventory *service.InventoryService
	Chat      *service.ChatService
	Cms       *service.CmsService
}

// Resources are the collections served by the generic handlers.
type Resources struct {
	Products      *crud.Resource[models.Product, *models.Product]
	Categories    *crud.Resource[models.Category, *models.Category]
	SubCategories *crud.Resource[models.SubCategory, *models.SubCategory]
	Brands        *crud.Resource[models.Brand, *models.Brand]
	Coupons       *crud.Resource[models.Coupon, *models.Coupon]
	Users         *crud.Resource[models.User, *models.User]
	Orders        *crud.Resource[models.Order, *models.Order]
	Reviews       *crud.Resource[models.Review, *models.Review]
}

// Handler contains HTTP handlers
type Handler struct {
	cfg       *config.Config
	services  Services
	resources Resources
	authn     Authenticator
	limiter   RateLimiter
	sockets   SocketServer
	pingers   map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg *config.Config, services Services, resources Resources, limiter RateLimiter, sockets SocketServer, pingers map[string]Pinger) *Handler {
	return &Handler{
		cfg:       cfg,
		services:  services,
		resources: resources,
		authn:     services.Auth,
		limiter:   limiter,
		sockets:   sockets,
		pingers:   pingers,
		logger:    util.Named("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(requestID())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(corsMiddleware(h.cfg.Server.CORSOrigins))
	// Errors are rendered inside the metrics and access log middlewares so
	// both see the final status.
	router.Use(errorHandler(h.cfg.IsProduction()))
	router.Use(recovery())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		fail(c, apperr.NotFound("Can't find this route: %s", c.Request.URL.Path))
	})

	v1 := router.Group("/api/v1")
	{
		h.catalogRoutes(v1)
		h.accountRoutes(v1)
		h.orderRoutes(v1)
		h.operationsRoutes(v1)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing store and reports the first failure.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"checks": checks,
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
