package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/middleware"
	"github.com/talimhub/school-ops-api/internal/models"
	"github.com/talimhub/school-ops-api/pkg/config"
	"github.com/talimhub/school-ops-api/pkg/logger"
	"github.com/talimhub/school-ops-api/pkg/middleware/cors"
	"github.com/talimhub/school-ops-api/pkg/middleware/requestid"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth          *AuthHandler
	Adjustments   *AdjustmentHandler
	Subscriptions *SubscriptionHandler
	SessionLinks  *SessionLinkHandler
	Waivers       *WaiverHandler
	Policies      *PolicyHandler
}

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// NewRouter wires middleware and routes. db and rdb back the health probes.
func NewRouter(cfg *config.Config, log *zap.Logger, h Handlers, tokens tokenValidator, db *sqlx.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", middleware.Authenticated(tokens), h.Auth.Logout)
	}

	protected := api.Group("")
	protected.Use(middleware.Authenticated(tokens))

	adminOnly := middleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin)

	payroll := protected.Group("/payroll")
	{
		payroll.POST("/adjustments", adminOnly, h.Adjustments.Apply)
		payroll.GET("/waivers", adminOnly, h.Waivers.List)
		payroll.GET("/waivers/export", adminOnly, h.Waivers.Export)
		payroll.GET("/policy", adminOnly, h.Policies.Get)
		payroll.PUT("/policy", adminOnly, h.Policies.Update)
	}

	sessions := protected.Group("/sessions")
	{
		sessions.POST("/links", middleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), h.SessionLinks.Dispatch)
		sessions.GET("/links", h.SessionLinks.List)
	}

	subscriptions := protected.Group("")
	{
		subscriptions.POST("/subscriptions/finalize", adminOnly, h.Subscriptions.Finalize)
		subscriptions.GET("/students/:studentId/subscriptions", adminOnly, h.Subscriptions.ListForStudent)
	}

	return r
}
