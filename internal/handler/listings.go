package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dodocesoir/internal/repository"
	"github.com/iliyamo/dodocesoir/internal/service"
)

// ListingHandler serves the public directory.  Nothing here requires a
// session and provider emails never leave the service layer.
type ListingHandler struct {
	Directory *service.DirectoryService
}

func NewListingHandler(d *service.DirectoryService) *ListingHandler {
	return &ListingHandler{Directory: d}
}

// List handles GET /v1/listings?q=&stage=&available_only=&locale=.
func (h *ListingHandler) List(c echo.Context) error {
	f := service.ListingFilter{
		Query:  c.QueryParam("q"),
		Locale: localeOf(c),
	}
	if s := strings.TrimSpace(c.QueryParam("stage")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid stage"})
		}
		f.Stage = n
	}
	if s := strings.TrimSpace(c.QueryParam("available_only")); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid available_only"})
		}
		f.AvailableOnly = b
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	page, err := h.Directory.List(ctx, f)
	if err != nil {
		return errorResponse(c, "listings.list", err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/listings/:id.
func (h *ListingHandler) Get(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it, err := h.Directory.Get(ctx, id, localeOf(c))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
	}
	if err != nil {
		return errorResponse(c, "listings.get", err)
	}
	return c.JSON(http.StatusOK, it)
}

// Stages handles GET /v1/stages.
func (h *ListingHandler) Stages(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stages, err := h.Directory.Stages(ctx)
	if err != nil {
		return errorResponse(c, "listings.stages", err)
	}
	if stages == nil {
		stages = []int{}
	}
	return c.JSON(http.StatusOK, stages)
}

// localeOf prefers the locale query parameter and falls back to the first
// tag of Accept-Language.
func localeOf(c echo.Context) string {
	if l := strings.TrimSpace(c.QueryParam("locale")); l != "" {
		return l
	}
	al := c.Request().Header.Get("Accept-Language")
	if i := strings.IndexAny(al, ",;"); i >= 0 {
		al = al[:i]
	}
	return strings.TrimSpace(al)
}
