package models

// Role names seeded by the initial migration.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type Role struct {
	ID   int64
	Name string
}
