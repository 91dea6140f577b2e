package domain

import "time"

// Principal is the internal identity roles and sessions attach to. One
// principal may hold several identity bindings (platform account plus a
// linked email); each binding key belongs to at most one principal.
type Principal struct {
	ID           string    `json:"id"`
	IdentityKeys []string  `json:"identity_keys"`
	Roles        []Role    `json:"roles"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasIdentity reports whether the given binding key is attached.
func (p *Principal) HasIdentity(key string) bool {
	for _, k := range p.IdentityKeys {
		if k == key {
			return true
		}
	}
	return false
}

// HasRole reports whether the principal holds the exact role.
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// MaxRole returns the highest role held, defaulting to RoleUser.
func (p *Principal) MaxRole() Role {
	max := RoleUser
	for _, r := range p.Roles {
		if r.AtLeast(max) {
			max = r
		}
	}
	return max
}
