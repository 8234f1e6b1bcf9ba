package domain

type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleLevels = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Allows reports whether r grants at least the privileges of required.
func (r Role) Allows(required Role) bool {
	return roleLevels[r] >= roleLevels[required]
}
