package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dodocesoir/internal/applog"
	"github.com/iliyamo/dodocesoir/internal/middleware"
	"github.com/iliyamo/dodocesoir/internal/model"
	"github.com/iliyamo/dodocesoir/internal/service"
)

// ProviderHandler serves the availability portal of signed-in providers.
// Every route runs behind JWTAuth and RequireRole.
type ProviderHandler struct {
	Availability *service.AvailabilityService
	Resolver     *service.LinkResolver
}

func NewProviderHandler(a *service.AvailabilityService, r *service.LinkResolver) *ProviderHandler {
	return &ProviderHandler{Availability: a, Resolver: r}
}

type availabilityReq struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
	Capacity    *int  `json:"capacity"` // checked by Submit; ignored when is_available is false
}

type availabilityResp struct {
	ListingID          string                   `json:"listing_id"`
	IsAvailable        *bool                    `json:"is_available"`
	Capacity           *int                     `json:"capacity"`
	UpdatedAt          time.Time                `json:"updated_at"`
	AvailabilityStatus model.AvailabilityStatus `json:"availability_status"`
}

type sessionInfo struct {
	PrincipalID string  `json:"principal_id"`
	Email       string  `json:"email"`
	Linked      bool    `json:"linked"`
	ListingID   *string `json:"listing_id"`
}

// principal rebuilds the caller from the claims JWTAuth stored.
func principal(c echo.Context) (model.Principal, bool) {
	id := middleware.PrincipalID(c)
	if id == "" {
		return model.Principal{}, false
	}
	return model.Principal{ID: id, Email: middleware.PrincipalEmail(c)}, true
}

// Session handles GET /v1/provider/session.
func (h *ProviderHandler) Session(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listingID, linked, err := h.Resolver.Resolve(ctx, p)
	if err != nil {
		return errorResponse(c, "provider.session", err)
	}
	out := sessionInfo{PrincipalID: p.ID, Email: p.Email, Linked: linked}
	if linked {
		out.ListingID = &listingID
	}
	return c.JSON(http.StatusOK, out)
}

// Listing handles GET /v1/provider/listing.
func (h *ProviderHandler) Listing(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Availability.Dashboard(ctx, p)
	if err != nil {
		return errorResponse(c, "provider.listing", err)
	}
	return c.JSON(http.StatusOK, d)
}

// SubmitAvailability handles PUT /v1/provider/availability.  The caller's
// link is resolved first so a provider can submit right after signing in.
func (h *ProviderHandler) SubmitAvailability(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req availabilityReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	if req.IsAvailable == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "is_available is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listingID, linked, err := h.Resolver.Resolve(ctx, p)
	if err != nil {
		return errorResponse(c, "provider.availability", err)
	}
	if !linked {
		return errorResponse(c, "provider.availability", service.ErrUnauthorized)
	}

	rec, err := h.Availability.Submit(ctx, p.ID, listingID, *req.IsAvailable, req.Capacity)
	if err != nil {
		return errorResponse(c, "provider.availability", err)
	}
	applog.Audit(c, "availability.submitted", map[string]any{
		"listing_id":   rec.ListingID,
		"is_available": *req.IsAvailable,
	})
	return c.JSON(http.StatusOK, availabilityResp{
		ListingID:          rec.ListingID,
		IsAvailable:        rec.IsAvailable,
		Capacity:           rec.Capacity,
		UpdatedAt:          rec.UpdatedAt,
		AvailabilityStatus: h.Availability.Status(&rec),
	})
}
