package models

import "github.com/Daskott/kinfolk/server/auth"

const (
	ADMIN_ROLE     = auth.ADMIN_ROLE
	SUB_ADMIN_ROLE = auth.SUB_ADMIN_ROLE
	VIEWER_ROLE    = auth.VIEWER_ROLE
)

// RoleMap holds the roles a user can hold within a family.
var RoleMap = map[string]bool{
	ADMIN_ROLE:     true,
	SUB_ADMIN_ROLE: true,
	VIEWER_ROLE:    true,
}

type Role struct {
	BaseModel
	Name  string `json:"name" gorm:"not null;unique"`
	Users []User `json:"users,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
}

// CanEdit reports whether a role may mutate the family graph.
func CanEdit(role string) bool {
	return role == ADMIN_ROLE || role == SUB_ADMIN_ROLE
}

func FindRole(name string) (*Role, error) {
	role := Role{}
	err := db.Select("id", "name").First(&role, "name = ?", name).Error
	if err != nil {
		return nil, err
	}

	return &role, nil
}
