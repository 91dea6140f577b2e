package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Status    int    `json:"status"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// coarseCredentialMessage is returned for every credential failure in
// the code and email flows. The error_code stays typed and stable, but
// the message never reveals whether the credential was wrong, expired,
// or already used.
const coarseCredentialMessage = "invalid or expired credential"

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders the stable JSON envelope {status, error_code, message}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, errCode, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Status: code, ErrorCode: errCode, Message: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, "http_error", fmt.Sprintf("%v", he.Message)
	}

	var authErr *domain.AuthorizationError
	if errors.As(err, &authErr) {
		// The caller is authenticated already; naming the required
		// role leaks nothing.
		return http.StatusForbidden, "authorization_denied", authErr.Error()
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusUnauthorized, "missing_credential", "authentication required"
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid_credential", coarseCredentialMessage
	case errors.Is(err, domain.ErrExpired):
		return http.StatusUnauthorized, "expired", coarseCredentialMessage
	case errors.Is(err, domain.ErrAlreadyConsumed):
		return http.StatusUnauthorized, "already_consumed", coarseCredentialMessage
	case errors.Is(err, domain.ErrIdentityConflict):
		return http.StatusConflict, "identity_conflict", "identity already linked to another account"
	case errors.Is(err, domain.ErrPrincipalNotFound):
		return http.StatusNotFound, "principal_not_found", "principal not found"
	case errors.Is(err, domain.ErrProviderUnavailable):
		log.Error().Err(err).Str("path", c.Path()).Msg("collaborator unavailable")
		return http.StatusServiceUnavailable, "provider_error", "service temporarily unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
