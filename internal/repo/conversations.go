package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
)

// CreateConversation inserts c and fills its id.
func CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetConversation fetches a conversation by id, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id int64) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateMembers inserts membership rows in one statement.
func CreateMembers(ctx context.Context, db *gorm.DB, rows []*domain.ConversationMember) error {
	if len(rows) == 0 {
		return nil
	}
	return mapWriteErr(db.WithContext(ctx).Create(rows).Error)
}

// GetMember fetches userID's membership in conversationID, or ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, conversationID, userID int64) (*domain.ConversationMember, error) {
	var m domain.ConversationMember
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SoftDeleteMember marks userID as having left conversationID.
func SoftDeleteMember(ctx context.Context, db *gorm.DB, conversationID, userID int64) error {
	res := db.WithContext(ctx).Model(&domain.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreMember makes userID an active member of conversationID again,
// creating the membership row when none exists.
func RestoreMember(ctx context.Context, db *gorm.DB, conversationID, userID int64, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_deleted", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return CreateMembers(ctx, db, []*domain.ConversationMember{{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           domain.RoleMember,
		JoinedAt:       now,
	}})
}
