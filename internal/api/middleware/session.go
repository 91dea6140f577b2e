package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/ports"
)

const (
	ctxSession   = "auth_session"
	ctxPrincipal = "auth_principal"
)

// Session resolves the session cookie (or bearer token) into a principal
// and injects both into the request context. Each authenticated request
// slides the session expiry. Requests without a valid session pass
// through anonymous; guards downstream decide whether that is acceptable.
func Session(sessions ports.SessionManager, repo ports.PrincipalRepository, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := sessionToken(c, cookieName)
			if token == "" {
				return next(c)
			}

			sess, err := sessions.Refresh(c.Request().Context(), token)
			if err != nil {
				return err
			}
			if sess == nil {
				return next(c)
			}

			p, err := repo.FindByID(c.Request().Context(), sess.PrincipalID)
			if err != nil {
				if err == domain.ErrPrincipalNotFound {
					// Session outlived its principal; treat as anonymous.
					return next(c)
				}
				return err
			}

			c.Set(ctxSession, sess)
			c.Set(ctxPrincipal, p)
			return next(c)
		}
	}
}

// RequireSession rejects anonymous requests with a 401-class error.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PrincipalFrom(c) == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// RequireRole enforces a minimum role on an authenticated principal:
// 401 when there is no session at all, 403 when the role requirement is
// unmet.
func RequireRole(roles ports.RoleAuthority, required domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c)
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if err := roles.Require(p, required); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// PrincipalFrom returns the authenticated principal, or nil.
func PrincipalFrom(c echo.Context) *domain.Principal {
	p, _ := c.Get(ctxPrincipal).(*domain.Principal)
	return p
}

// SessionFrom returns the live session, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(ctxSession).(*domain.Session)
	return s
}

// sessionToken extracts the token from the session cookie, falling back
// to a bearer Authorization header for cookie-less clients.
func sessionToken(c echo.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := c.Request().Header.Get("Authorization")
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
