package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/identity"
	"github.com/Freeeeeet/appointment_booking/internal/metrics"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	contextActor  = "actor"
	contextClaims = "claims"
)

// authMiddleware проверяет Bearer токен и кладёт пользователя в контекст запроса
func authMiddleware(provider *identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			writeError(c, apperr.New(apperr.CodeUnauthorized, "missing authorization header"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(c, apperr.New(apperr.CodeUnauthorized, "invalid authorization header"))
			return
		}

		claims, err := provider.ParseToken(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			writeError(c, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			writeError(c, apperr.New(apperr.CodeUnauthorized, "invalid token subject"))
			return
		}

		c.Set(contextClaims, claims)
		c.Set(contextActor, model.Actor{UserID: userID, Role: claims.Role})
		c.Next()
	}
}

// requireRole пропускает только перечисленные роли
func requireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		writeError(c, apperr.New(apperr.CodeForbidden, "insufficient permissions"))
	}
}

func actorFrom(c *gin.Context) model.Actor {
	actor, _ := c.MustGet(contextActor).(model.Actor)
	return actor
}

func claimsFrom(c *gin.Context) *identity.Claims {
	claims, _ := c.MustGet(contextClaims).(*identity.Claims)
	return claims
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin != "" && (allowAll || allowed[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger пишет в лог каждый запрос и обновляет гистограмму длительности
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, elapsed)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request failed", fields...)
		case route == "/healthz" || route == "/readyz" || route == "/metrics":
			logger.Debug("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

// ipRateLimiter ограничивает частоту запросов с одного IP
type ipRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// rateLimit при perSecond <= 0 ничего не ограничивает
func rateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newIPRateLimiter(perSecond, burst)
	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error:   "rate_limited",
				Message: "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}
