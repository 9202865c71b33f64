package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/dodocesoir/internal/config"
	"github.com/iliyamo/dodocesoir/internal/handler"
	"github.com/iliyamo/dodocesoir/internal/middleware"
	"github.com/iliyamo/dodocesoir/internal/utils"
)

// Deps carries everything the routes need.  Redis may be nil, in which
// case rate limiting and response caching are pass-through.
type Deps struct {
	JWTSecret     string
	Redis         *redis.Client
	Cache         config.CacheConfig
	RateLimit     config.RateLimitConfig
	AuthRateLimit config.RateLimitConfig

	Health   *handler.HealthHandler
	Listings *handler.ListingHandler
	Auth     *handler.AuthHandler
	Provider *handler.ProviderHandler
}

// RegisterRoutes wires every route group on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Health != nil {
		e.GET("/readyz", d.Health.Ready)
	}
	RegisterPublic(e, d)
	RegisterAuth(e, d)
	RegisterProvider(e, d)
}

// RegisterPublic registers the unauthenticated directory.  Responses are
// cached in Redis for a short TTL.
func RegisterPublic(e *echo.Echo, d Deps) {
	g := e.Group("/v1",
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
		middleware.NewRedisCache(d.Cache, d.Redis),
	)
	g.GET("/listings", d.Listings.List)
	g.GET("/listings/:id", d.Listings.Get)
	g.GET("/stages", d.Listings.Stages)
}

// RegisterAuth registers the sign-in flow under /v1/auth behind the
// stricter limiter.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth", middleware.NewTokenBucket(d.AuthRateLimit, d.Redis))
	g.POST("/otp", d.Auth.RequestCode)
	g.POST("/verify", d.Auth.Verify)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout)
}

// RegisterProvider registers the availability portal.  All routes require
// a valid access token with the PROVIDER role.
func RegisterProvider(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/provider",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(utils.RoleProvider),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	g.GET("/session", d.Provider.Session)
	g.GET("/listing", d.Provider.Listing)
	g.PUT("/availability", d.Provider.SubmitAvailability)
}
