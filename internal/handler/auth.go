package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dodocesoir/internal/applog"
	"github.com/iliyamo/dodocesoir/internal/middleware"
	"github.com/iliyamo/dodocesoir/internal/service"
	"github.com/iliyamo/dodocesoir/internal/utils"
)

// AuthHandler exposes the passwordless sign-in flow: request a code,
// verify it, rotate the refresh token and sign out.
type AuthHandler struct {
	Auth      *service.AuthService
	JWTSecret string
}

func NewAuthHandler(a *service.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{Auth: a, JWTSecret: jwtSecret}
}

// ----- DTOs -----

type otpReq struct {
	Email string `json:"email" validate:"required,email"`
}
type verifyReq struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric,max=12"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type principalPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	Principal principalPart `json:"principal"`
	Access    tokenPart     `json:"access"`
	Refresh   tokenPart     `json:"refresh"`
}

func sessionResp(s service.Session) authResp {
	return authResp{
		Principal: principalPart{ID: s.Principal.ID, Email: s.Principal.Email, Role: utils.RoleProvider},
		Access:    tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh:   tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
	}
}

// RequestCode: mail a one-time code to a registered email.
func (h *AuthHandler) RequestCode(c echo.Context) error {
	var req otpReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Auth.RequestCode(ctx, req.Email); err != nil {
		return errorResponse(c, "auth.otp", err)
	}
	applog.Audit(c, "auth.otp_sent", map[string]any{"email": service.NormalizeEmail(req.Email)})
	return c.JSON(http.StatusAccepted, echo.Map{"status": "code sent"})
}

// Verify: exchange email + code for a session.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.VerifyCode(ctx, req.Email, req.Code)
	if err != nil {
		return errorResponse(c, "auth.verify", err)
	}
	c.Set(middleware.CtxPrincipalID, sess.Principal.ID)
	applog.Audit(c, "auth.signed_in", nil)
	return c.JSON(http.StatusOK, sessionResp(sess))
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return errorResponse(c, "auth.refresh", err)
	}
	return c.JSON(http.StatusOK, sessionResp(sess))
}

// Logout revokes the refresh token in the body.  With a bearer token and no
// body every session of the principal is revoked.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	principalID := ""
	if raw, ok := middleware.BearerToken(c); ok {
		claims, err := utils.ParseAccessToken(h.JWTSecret, raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		principalID = claims.PrincipalID
		c.Set(middleware.CtxPrincipalID, principalID)
	}
	if principalID == "" && req.RefreshToken == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing credentials"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.SignOut(ctx, principalID, req.RefreshToken); err != nil {
		return errorResponse(c, "auth.logout", err)
	}
	applog.Audit(c, "auth.signed_out", nil)
	return c.NoContent(http.StatusNoContent)
}
