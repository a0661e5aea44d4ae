package core

import "fmt"

// Role is the closed set of personas an account can hold.
type Role int

const (
	RoleAdmin Role = iota + 1
	RoleStudent
	RoleTeacher
	RoleCommittee
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleStudent, RoleTeacher, RoleCommittee}

// String returns the wire value stored in profiles.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStudent:
		return "santri"
	case RoleTeacher:
		return "guru"
	case RoleCommittee:
		return "komite"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Label is the Indonesian display name.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleStudent:
		return "Santri"
	case RoleTeacher:
		return "Guru"
	case RoleCommittee:
		return "Komite"
	default:
		return ""
	}
}

func (r Role) IsValid() bool {
	return r >= RoleAdmin && r <= RoleCommittee
}

// ParseRole maps a wire value to a Role.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if r == 0 {
		return []byte{}, nil
	}
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = 0
		return nil
	}
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
