package shared

import "fmt"

// Role identifies which account a credential belongs to in a migration.
//
// The source account only needs read access to its library; the destination
// account additionally needs write access.
type Role string

const (
	RoleSource Role = "source"
	RoleDest   Role = "dest"
)

// ParseRole validates a role string from CLI flags or URL paths.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSource:
		return RoleSource, nil
	case RoleDest:
		return RoleDest, nil
	default:
		return "", fmt.Errorf("%w: %q (must be 'source' or 'dest')", ErrInvalidRole, s)
	}
}

func (r Role) String() string {
	return string(r)
}
