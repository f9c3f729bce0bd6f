package models

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Daskott/kinfolk/server/family"
	"gorm.io/gorm"
)

// UserDirectory exposes accounts to the family service as principals.
type UserDirectory struct{}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{}
}

func (ud *UserDirectory) FindByEmail(ctx context.Context, email string) (*family.Principal, error) {
	user, err := FindUserBy("email", strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &family.Principal{
		ID:       strconv.FormatUint(uint64(user.ID), 10),
		FamilyID: user.FamilyID,
		Name:     user.Name,
		Email:    user.Email,
	}, nil
}

// UpdateFields copies a person's new name or email to the account with email
// in familyID. People without an account are left alone.
func (ud *UserDirectory) UpdateFields(ctx context.Context, familyID, email string, fields family.PrincipalFields) error {
	data := map[string]interface{}{}
	if fields.Name != "" {
		data["name"] = fields.Name
	}
	if fields.Email != "" {
		data["email"] = strings.ToLower(fields.Email)
	}
	if len(data) == 0 {
		return nil
	}

	return db.WithContext(ctx).Model(&User{}).
		Scopes(inFamily(familyID)).
		Where("email = ?", strings.ToLower(email)).
		Updates(data).Error
}
