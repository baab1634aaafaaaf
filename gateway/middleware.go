package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/config"
	"github.com/example/dinein/pkg/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsMiddleware(cfg *config.ServerConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 || cfg.AllowOrigins[0] == "*" {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else {
		cc.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(cc)
}

// originChecker allows websocket upgrades from the configured origins.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || origins[0] == "*" {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// authenticate resolves the bearer token when one is sent. Requests without
// a token continue as customers. An admin may act inside a restaurant by
// passing ?restaurant=.
func (g *Gateway) authenticate(c *gin.Context) {
	raw := bearer(c)
	if raw == "" {
		c.Next()
		return
	}
	actor, err := g.svc.Tokens.Resolve(raw)
	if err != nil {
		g.fail(c, err)
		c.Abort()
		return
	}
	if actor.Role == models.RoleAdmin {
		actor.RestaurantID = c.Query("restaurant")
	}
	c.Set(actorKey, actor)
	c.Next()
}

func requireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(actorKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !v.(models.Actor).Is(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

func actorOf(c *gin.Context) models.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(models.Actor)
	return actor
}

// fail writes err as a JSON error response.
func (g *Gateway) fail(c *gin.Context, err error) {
	code := apperr.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(code, gin.H{"error": apperr.Message(err)})
}

// bind decodes the JSON body into v, answering 400 on failure.
func (g *Gateway) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
