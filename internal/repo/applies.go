package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
)

// GetApply fetches an application by id, or ErrNotFound.
func GetApply(ctx context.Context, db *gorm.DB, id int64) (*domain.ContactApply, error) {
	var a domain.ContactApply
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindApply returns the application from userID to friendID whatever its
// status, or ErrNotFound.
func FindApply(ctx context.Context, db *gorm.DB, userID, friendID int64) (*domain.ContactApply, error) {
	var a domain.ContactApply
	err := db.WithContext(ctx).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateApply inserts a. A second row for the same ordered pair yields
// ErrDuplicate.
func CreateApply(ctx context.Context, db *gorm.DB, a *domain.ContactApply) error {
	return mapWriteErr(db.WithContext(ctx).Create(a).Error)
}

// ResetApplyToPending reopens a handled application in place: pending,
// unread, fresh creation time.
func ResetApplyToPending(ctx context.Context, db *gorm.DB, id int64, description string, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.ContactApply{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.ApplyPending,
			"is_read":     false,
			"description": description,
			"created_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionApply moves application id from one status to another and
// reports whether this call performed the transition.
func TransitionApply(ctx context.Context, db *gorm.DB, id int64, from, to domain.ApplyStatus) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.ContactApply{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListAppliesTo returns the pending applications received by friendID,
// newest first. Handled applications drop out of the inbox.
func ListAppliesTo(ctx context.Context, db *gorm.DB, friendID int64, limit int) ([]domain.ContactApply, error) {
	var out []domain.ContactApply
	q := db.WithContext(ctx).
		Where("friend_id = ? AND status = ?", friendID, domain.ApplyPending).
		Order("created_at desc").
		Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountUnreadApplies counts applications to friendID not yet seen.
func CountUnreadApplies(ctx context.Context, db *gorm.DB, friendID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.ContactApply{}).
		Where("friend_id = ? AND is_read = ?", friendID, false).
		Count(&n).Error
	return n, err
}

// MarkAppliesRead flags every application to friendID as read.
func MarkAppliesRead(ctx context.Context, db *gorm.DB, friendID int64) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.ContactApply{}).
		Where("friend_id = ? AND is_read = ?", friendID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
