package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/crud"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	actorKey     = "actor"
	stackKey     = "panicStack"
	requestIDKey = "requestID"
	requestIDHdr = "X-Request-ID"
)

// fail hands err to the error middleware and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// actor returns the user loaded by protect.
func actor(c *gin.Context) *models.User {
	u, _ := c.MustGet(actorKey).(*models.User)
	return u
}

// bindJSON decodes the body into dst and validates it with the same rules the
// store applies. An empty body leaves dst untouched.
func bindJSON(c *gin.Context, dst interface{}) error {
	raw, err := c.GetRawData()
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "Invalid request body")
	}
	if err := decodeDoc(raw, dst); err != nil {
		return err
	}
	return crud.Validate(dst)
}

func decodeDoc(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "Invalid request body")
	}
	return nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHdr)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHdr, id)
		c.Next()
	}
}

// errorHandler renders the last error attached to the context. Client errors
// are "fail", server errors "error"; the raw cause is shown outside production.
func errorHandler(production bool) gin.HandlerFunc {
	logger := util.Named("http")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.StatusCode(err)

		if status >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}

		body := gin.H{
			"status":  "fail",
			"message": apperr.PublicMessage(err),
		}
		if status >= http.StatusInternalServerError {
			body["status"] = "error"
		}
		if !production {
			body["error"] = err.Error()
			if stack := c.GetString(stackKey); stack != "" {
				body["stack"] = stack
			}
		}
		c.JSON(status, body)
	}
}

// recovery turns a panic into an internal error rendered by errorHandler.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		c.Set(stackKey, string(debug.Stack()))
		fail(c, fmt.Errorf("panic: %v", recovered))
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-XSRF-TOKEN", requestIDHdr},
		ExposeHeaders: []string{requestIDHdr},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// protect loads the acting user from the bearer token. Inactive accounts are
// let through only when allowInactive is set.
func (h *Handler) protect(allowInactive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.authn.Authenticate(c.Request.Context(), bearerToken(c), allowInactive)
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(actorKey, user)
		c.Next()
	}
}

// allowedTo must run after protect.
func allowedTo(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Allowed(actor(c).Role, roles...); err != nil {
			fail(c, err)
			return
		}
		c.Next()
	}
}

// rateLimit counts requests per client IP. Limiter failures let the request
// through.
func rateLimit(limiter RateLimiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	logger := util.Named("ratelimit")
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}
		ok, err := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP(), limit, window)
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			util.AuthRateLimitedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "fail",
				"message": "Too many requests from this IP, please try again later",
			})
			return
		}
		c.Next()
	}
}
