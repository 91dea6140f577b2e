package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/botforge/miniapp-system/internal/api/metrics"
	"github.com/botforge/miniapp-system/internal/api/middleware"
	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/ports"
	"github.com/botforge/miniapp-system/internal/core/service"
	"github.com/botforge/miniapp-system/internal/verify"
)

// AuthHandler exposes the authentication flows over HTTP. All error
// translation happens in the central error handler; this layer only
// binds, validates, delegates, and sets cookies.
type AuthHandler struct {
	auth           ports.AuthService
	sessions       *service.SessionManager
	botToken       string
	initDataMaxAge time.Duration
}

func NewAuthHandler(auth ports.AuthService, sessions *service.SessionManager, botToken string, initDataMaxAge time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:           auth,
		sessions:       sessions,
		botToken:       botToken,
		initDataMaxAge: initDataMaxAge,
	}
}

type miniappRequest struct {
	InitData string `json:"init_data"`
}

type codeStartRequest struct {
	IdentityKey string `json:"identity_key" validate:"required"`
}

type codeCompleteRequest struct {
	IdentityKey string `json:"identity_key" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

type linkCompleteRequest struct {
	Token string `json:"token" validate:"required"`
}

type emailRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type emailCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type sessionResponse struct {
	Principal *domain.Principal `json:"principal"`
	ExpiresAt time.Time         `json:"expires_at"`
	// StartParam relays the deep-link start parameter from a verified
	// client payload (invite code, referrer).
	StartParam string `json:"start_param,omitempty"`
}

// Miniapp authenticates the embedded client channel: a signed init-data
// payload from the Authorization header ("tma <raw>") or request body.
//
// @Summary      Authenticate a mini-app client payload
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]any
// @Router       /auth/miniapp [post]
func (h *AuthHandler) Miniapp(c echo.Context) error {
	raw := initDataFrom(c)

	data, err := verify.VerifyInitData(raw, h.botToken, h.initDataMaxAge, time.Now())
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("client_payload", verifyResult(err)).Inc()
		return err
	}
	metrics.VerificationsTotal.WithLabelValues("client_payload", "valid").Inc()

	principal, sess, err := h.auth.LoginIdentity(c.Request().Context(), data.Identity())
	if err != nil {
		metrics.AuthFlowsTotal.WithLabelValues("client_payload", "failure").Inc()
		return err
	}
	metrics.AuthFlowsTotal.WithLabelValues("client_payload", "success").Inc()
	metrics.SessionsIssuedTotal.Inc()

	c.SetCookie(h.sessions.Cookie(sess))
	return c.JSON(http.StatusOK, sessionResponse{
		Principal:  principal,
		ExpiresAt:  sess.ExpiresAt,
		StartParam: data.StartParam,
	})
}

// CodeStart begins the code-based flow.
//
// @Summary      Request a one-time login code
// @Tags         auth
// @Router       /auth/code/start [post]
func (h *AuthHandler) CodeStart(c echo.Context) error {
	var req codeStartRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.auth.StartCode(c.Request().Context(), req.IdentityKey); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "code_sent"})
}

// CodeComplete exchanges a one-time code for a session.
//
// @Summary      Complete the code-based flow
// @Tags         auth
// @Router       /auth/code/complete [post]
func (h *AuthHandler) CodeComplete(c echo.Context) error {
	var req codeCompleteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	principal, sess, err := h.auth.CompleteCode(c.Request().Context(), req.IdentityKey, req.Code)
	if err != nil {
		metrics.AuthFlowsTotal.WithLabelValues("code", "failure").Inc()
		return err
	}
	metrics.AuthFlowsTotal.WithLabelValues("code", "success").Inc()
	metrics.SessionsIssuedTotal.Inc()

	c.SetCookie(h.sessions.Cookie(sess))
	return c.JSON(http.StatusOK, sessionResponse{Principal: principal, ExpiresAt: sess.ExpiresAt})
}

// LinkComplete exchanges a signed deep-link token for a session.
//
// @Summary      Complete the deep-link flow
// @Tags         auth
// @Router       /auth/link/complete [post]
func (h *AuthHandler) LinkComplete(c echo.Context) error {
	var req linkCompleteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	principal, sess, err := h.auth.CompleteDeepLink(c.Request().Context(), req.Token)
	if err != nil {
		metrics.AuthFlowsTotal.WithLabelValues("deep_link", "failure").Inc()
		return err
	}
	metrics.AuthFlowsTotal.WithLabelValues("deep_link", "success").Inc()
	metrics.SessionsIssuedTotal.Inc()

	c.SetCookie(h.sessions.Cookie(sess))
	return c.JSON(http.StatusOK, sessionResponse{Principal: principal, ExpiresAt: sess.ExpiresAt})
}

// Signup begins the email flow with a pending verification.
//
// @Summary      Start email signup
// @Tags         auth
// @Router       /auth/email/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.auth.Signup(c.Request().Context(), req.Email, req.Password); err != nil {
		metrics.AuthFlowsTotal.WithLabelValues("email_signup", "failure").Inc()
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "verification_pending"})
}

// SignupComplete confirms the emailed code and issues the session.
//
// @Summary      Complete email signup
// @Tags         auth
// @Router       /auth/email/signup/complete [post]
func (h *AuthHandler) SignupComplete(c echo.Context) error {
	var req emailCodeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	principal, sess, err := h.auth.CompleteSignup(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		metrics.AuthFlowsTotal.WithLabelValues("email_signup", "failure").Inc()
		return err
	}
	metrics.AuthFlowsTotal.WithLabelValues("email_signup", "success").Inc()
	metrics.SessionsIssuedTotal.Inc()

	c.SetCookie(h.sessions.Cookie(sess))
	return c.JSON(http.StatusCreated, sessionResponse{Principal: principal, ExpiresAt: sess.ExpiresAt})
}

// Login authenticates an email/password pair.
//
// @Summary      Email login
// @Tags         auth
// @Router       /auth/email/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	principal, sess, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthFlowsTotal.WithLabelValues("email_login", "failure").Inc()
		return err
	}
	metrics.AuthFlowsTotal.WithLabelValues("email_login", "success").Inc()
	metrics.SessionsIssuedTotal.Inc()

	c.SetCookie(h.sessions.Cookie(sess))
	return c.JSON(http.StatusOK, sessionResponse{Principal: principal, ExpiresAt: sess.ExpiresAt})
}

// LinkEmail binds an email credential to the authenticated principal.
//
// @Summary      Link an email identity
// @Tags         auth
// @Router       /auth/email/link [post]
func (h *AuthHandler) LinkEmail(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	linked, err := h.auth.LinkEmail(c.Request().Context(), p.ID, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, linked)
}

// Logout revokes the current session and clears the cookie.
//
// @Summary      Logout
// @Tags         auth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sess := middleware.SessionFrom(c)
	if sess != nil {
		if err := h.auth.Logout(c.Request().Context(), sess.Token); err != nil {
			return err
		}
		metrics.SessionsRevokedTotal.Inc()
	}
	c.SetCookie(h.sessions.ClearCookie())
	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the authenticated principal.
//
// @Summary      Current principal
// @Tags         auth
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, p)
}

// initDataFrom accepts the raw payload from the Authorization header
// ("tma <raw>") or a JSON body, forwarded opaque either way.
func initDataFrom(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "tma") {
		return parts[1]
	}
	var req miniappRequest
	if err := c.Bind(&req); err != nil {
		return ""
	}
	return req.InitData
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, domain.ErrMissingCredential):
		return "missing"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	default:
		return "invalid"
	}
}
