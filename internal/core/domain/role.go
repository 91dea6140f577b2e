package domain

// Role is one of a closed, strictly ordered set: owner implies admin
// implies user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

var roleLevel = map[Role]int{
	RoleUser:  0,
	RoleAdmin: 1,
	RoleOwner: 2,
}

// IsValid reports whether the role belongs to the closed set.
func (r Role) IsValid() bool {
	_, ok := roleLevel[r]
	return ok
}

// AtLeast reports whether this role satisfies the minimum required role
// under the owner > admin > user hierarchy.
func (r Role) AtLeast(min Role) bool {
	lvl, ok := roleLevel[r]
	if !ok {
		return false
	}
	minLvl, ok := roleLevel[min]
	if !ok {
		return false
	}
	return lvl >= minLvl
}

// ParseRole converts a stored string into a Role, reporting validity.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}
