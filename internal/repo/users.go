// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
)

// ProfileUpdate lists the profile columns a user may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Nickname *string
	Avatar   *string
	Gender   *int8
	Bio      *string
}

func (p ProfileUpdate) columns() map[string]any {
	cols := map[string]any{}
	if p.Nickname != nil {
		cols["nickname"] = *p.Nickname
	}
	if p.Avatar != nil {
		cols["avatar"] = *p.Avatar
	}
	if p.Gender != nil {
		cols["gender"] = *p.Gender
	}
	if p.Bio != nil {
		cols["bio"] = *p.Bio
	}
	return cols
}

// CreateUser inserts u. A taken username yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return mapWriteErr(db.WithContext(ctx).Create(u).Error)
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by login name, or ErrNotFound.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsers returns the users among ids that exist, in no particular order.
func GetUsers(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.User
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// UpdateUserProfile applies p to user id. An empty update is a no-op;
// a missing user yields ErrNotFound.
func UpdateUserProfile(ctx context.Context, db *gorm.DB, id int64, p ProfileUpdate) error {
	cols := p.columns()
	if len(cols) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
