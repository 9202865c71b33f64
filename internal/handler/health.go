package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler answers liveness and readiness checks.
type HealthHandler struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Health is the liveness check used by load balancers.  It returns a plain
// "ok" without touching any backend.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready reports whether the relational store answers.  Redis is optional,
// so its state is reported but never fails the check.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	out := echo.Map{"db": "ok", "redis": "disabled"}
	status := http.StatusOK
	if h.DB == nil {
		out["db"] = "missing"
		status = http.StatusServiceUnavailable
	} else if err := h.DB.PingContext(ctx); err != nil {
		out["db"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		out["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			out["redis"] = "unreachable"
		}
	}
	return c.JSON(status, out)
}
