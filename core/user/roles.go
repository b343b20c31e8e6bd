package user

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Role is the closed enumeration of account roles.
// Role ids are part of the API contract and must never be renumbered.
type Role int

const (
	RoleAdmin Role = iota + 1
	RoleUser
	RoleStudent
	RoleTeacher
	RoleStaff
	RoleAccountant
	RoleParent
)

var (
	AllRoles = []Role{RoleAdmin, RoleUser, RoleStudent, RoleTeacher, RoleStaff, RoleAccountant, RoleParent}

	AdminRoles = []Role{RoleAdmin}
	StaffRoles = []Role{RoleTeacher, RoleStaff, RoleAccountant}

	roleNames = map[Role]string{
		RoleAdmin:      "Admin",
		RoleUser:       "User",
		RoleStudent:    "Student",
		RoleTeacher:    "Teacher",
		RoleStaff:      "Staff",
		RoleAccountant: "Accountant",
		RoleParent:     "Parent",
	}

	// rolePriorities ranks roles for the "cannot grant a role above your own" rule.
	rolePriorities = map[Role]int{
		RoleAdmin:      70,
		RoleStaff:      50,
		RoleAccountant: 45,
		RoleTeacher:    40,
		RoleParent:     20,
		RoleStudent:    10,
		RoleUser:       1,
	}

	// defaultRoutes maps each role to its landing page, relative to the language root.
	defaultRoutes = map[Role]string{
		RoleAdmin:      "/admin-panel",
		RoleUser:       "",
		RoleStudent:    "/student-portal",
		RoleTeacher:    "/staff-portal",
		RoleStaff:      "/staff-portal",
		RoleAccountant: "/staff-portal",
		RoleParent:     "/student-portal",
	}

	ErrUnknownRole = errors.New("unknown role")
)

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) Name() string { return roleNames[r] }

func (r Role) String() string { return roleNames[r] }

// DefaultRoute returns the role's landing route for the given language,
// eg. "/en/student-portal". The fallback for an invalid role is the app root.
func (r Role) DefaultRoute(lang string) string {
	return "/" + lang + defaultRoutes[r]
}

func RolePriority(role Role) int {
	return rolePriorities[role]
}

// ParseRole validates a raw role id. Unknown ids fail closed.
func ParseRole(id int) (Role, error) {
	r := Role(id)
	if !r.Valid() {
		return 0, errors.Wrapf(ErrUnknownRole, "id=%d", id)
	}
	return r, nil
}

// ParseRoleValue coerces an untyped role id as received over the wire.
// The API contract is a numeric id but clients have been seen sending it as a
// quoted string or inside a {id, name} object; anything else fails closed
// rather than silently comparing unequal types.
func ParseRoleValue(v interface{}) (Role, error) {
	switch val := v.(type) {
	case nil:
		return 0, ErrUnknownRole
	case Role:
		if !val.Valid() {
			return 0, errors.Wrapf(ErrUnknownRole, "id=%d", int(val))
		}
		return val, nil
	case int:
		return ParseRole(val)
	case int64:
		return ParseRole(int(val))
	case float64:
		if val != float64(int(val)) {
			return 0, errors.Wrapf(ErrUnknownRole, "non-integral id=%v", val)
		}
		return ParseRole(int(val))
	case json.Number:
		id, err := val.Int64()
		if err != nil {
			return 0, errors.Wrapf(ErrUnknownRole, "id=%q", val.String())
		}
		return ParseRole(int(id))
	case string:
		id, err := strconv.Atoi(val)
		if err != nil {
			return 0, errors.Wrapf(ErrUnknownRole, "id=%q", val)
		}
		return ParseRole(id)
	case map[string]interface{}:
		return ParseRoleValue(val["id"])
	default:
		return 0, errors.Wrapf(ErrUnknownRole, "unsupported type %T", v)
	}
}

// MarshalJSON renders a role as the {id, name} object the portal consumes.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, errors.Wrapf(ErrUnknownRole, "id=%d", int(r))
	}
	return json.Marshal(struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}{int(r), r.Name()})
}

// UnmarshalJSON accepts either a bare id or an {id, name} object.
func (r *Role) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	role, err := ParseRoleValue(v)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// RoleSet is a membership set over the role enumeration.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) IsEmpty() bool { return len(s) == 0 }
