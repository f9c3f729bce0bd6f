package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Daskott/kinfolk/server/auth"
	"gorm.io/gorm"
)

var (
	allFieldsExceptPassword = []string{"id",
		"name",
		"email",
		"family_id",
		"role_id",
		"created_at",
		"updated_at",
	}

	updatableFields = []string{"name",
		"email",
		"password",
		"family_id",
		"role_id",
	}
)

type User struct {
	BaseModel
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email" gorm:"not null;unique"`
	Password string `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	FamilyID string `json:"family_id" gorm:"not null;index"`
	RoleID   uint   `json:"role_id" gorm:"null"`
	Role     *Role  `json:"role,omitempty"`
}

// RoleName is the name of the user's role, or "" when none is loaded.
func (user *User) RoleName() string {
	if user.Role == nil {
		return ""
	}
	return user.Role.Name
}

func (user *User) IsAdmin() bool {
	return user.RoleName() == ADMIN_ROLE
}

func (user *User) Update(data map[string]interface{}) error {
	if data["password"] != nil {
		passwordHash, err := auth.HashPassword(data["password"].(string))
		if err != nil {
			return err
		}
		data["password"] = passwordHash
	}

	if email, ok := data["email"].(string); ok {
		data["email"] = strings.ToLower(strings.TrimSpace(email))
	}

	return db.Model(&User{}).Where("id = ?", user.ID).Select(updatableFields).Updates(data).Error
}

// SetRole moves the user to the named role.
func (user *User) SetRole(name string) error {
	role, err := FindRole(name)
	if err != nil {
		return err
	}

	err = user.Update(map[string]interface{}{"role_id": role.ID})
	if err != nil {
		return err
	}

	user.RoleID = role.ID
	user.Role = role
	return nil
}

func CreateUser(user *User, roleName string) error {
	role, err := FindRole(roleName)
	if err != nil {
		return fmt.Errorf("role %v: %w", roleName, err)
	}

	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}

	user.Password = passwordHash
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.RoleID = role.ID
	user.Role = role

	return db.Omit("Role").Create(user).Error
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Preload("Role").Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", strings.ToLower(email)).Error

	if err != nil {
		return "", err
	}
	return user.Password, nil
}

// UsersInFamily lists a page of the accounts of a family, oldest first.
func UsersInFamily(familyID string, page, pageSize int) ([]User, *Paging, error) {
	var total int64
	users := []User{}

	err := db.Model(&User{}).Scopes(inFamily(familyID)).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Preload("Role").Select(allFieldsExceptPassword).
		Scopes(inFamily(familyID), paginate(page, pageSize)).
		Order("id").Find(&users).Error
	if err != nil {
		return nil, nil, err
	}

	return users, newPaging(int64(page), int64(pageSize), total), nil
}

// CountUsersWithRole counts the accounts of a family holding roleName.
func CountUsersWithRole(familyID, roleName string) (int64, error) {
	var count int64
	err := db.Model(&User{}).Scopes(inFamily(familyID)).
		Joins("INNER JOIN roles ON roles.id = users.role_id AND roles.name = ?", roleName).
		Count(&count).Error

	return count, err
}

// FamilyExists reports whether any account belongs to familyID.
func FamilyExists(familyID string) (bool, error) {
	err := db.Select("id").Scopes(inFamily(familyID)).First(&User{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

func DeleteUser(id interface{}) error {
	return db.Delete(&User{}, id).Error
}
