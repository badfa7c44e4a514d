package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
)

// ContactExists reports whether userID already has friendID as a contact.
func ContactExists(ctx context.Context, db *gorm.DB, userID, friendID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Contact{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&n).Error
	return n > 0, err
}

// FindContact returns userID's contact row for friendID, or ErrNotFound.
func FindContact(ctx context.Context, db *gorm.DB, userID, friendID int64) (*domain.Contact, error) {
	var c domain.Contact
	err := db.WithContext(ctx).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContact fetches a contact row by id, or ErrNotFound.
func GetContact(ctx context.Context, db *gorm.DB, id int64) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns userID's contacts, oldest first.
func ListContacts(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// CreateContacts inserts the rows in one statement.
func CreateContacts(ctx context.Context, db *gorm.DB, rows []*domain.Contact) error {
	if len(rows) == 0 {
		return nil
	}
	return mapWriteErr(db.WithContext(ctx).Create(rows).Error)
}

// UpdateContactRemark sets the remark of contact id owned by ownerID.
func UpdateContactRemark(ctx context.Context, db *gorm.DB, id, ownerID int64, remark string) error {
	res := db.WithContext(ctx).Model(&domain.Contact{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Update("remark", remark)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteContact hard-deletes contact id owned by ownerID. The peer's row is
// left alone.
func DeleteContact(ctx context.Context, db *gorm.DB, id, ownerID int64) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&domain.Contact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
