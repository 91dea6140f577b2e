package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the trust boundary. Handlers map these to HTTP codes
// centrally; services never translate them.
var (
	ErrMissingCredential   = errors.New("credential missing")
	ErrInvalidCredential   = errors.New("credential invalid")
	ErrExpired             = errors.New("credential expired")
	ErrAlreadyConsumed     = errors.New("credential already consumed")
	ErrIdentityConflict    = errors.New("identity already bound to another principal")
	ErrPrincipalNotFound   = errors.New("principal not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// AuthorizationError reports an unmet role requirement. Unlike credential
// errors it carries the required role: the caller is already authenticated,
// so precision here leaks nothing.
type AuthorizationError struct {
	Required Role
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization denied: requires role %q", e.Required)
}

// Is lets errors.Is match any AuthorizationError regardless of role.
func (e *AuthorizationError) Is(target error) bool {
	_, ok := target.(*AuthorizationError)
	return ok
}
