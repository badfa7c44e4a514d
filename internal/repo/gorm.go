package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/txn"
)

// Gorm exposes the repository functions as methods bound to a database.
// Every call runs on the transaction carried by ctx when txn.UnitOfWork
// started one, and on DB otherwise.
type Gorm struct {
	DB *gorm.DB
}

func (g Gorm) db(ctx context.Context) *gorm.DB { return txn.DB(ctx, g.DB) }

func (g Gorm) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return GetUser(ctx, g.db(ctx), id)
}

func (g Gorm) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return GetUserByUsername(ctx, g.db(ctx), username)
}

func (g Gorm) GetUsers(ctx context.Context, ids []int64) ([]domain.User, error) {
	return GetUsers(ctx, g.db(ctx), ids)
}

func (g Gorm) UpdateUserProfile(ctx context.Context, id int64, p ProfileUpdate) error {
	return UpdateUserProfile(ctx, g.db(ctx), id, p)
}

func (g Gorm) GetApply(ctx context.Context, id int64) (*domain.ContactApply, error) {
	return GetApply(ctx, g.db(ctx), id)
}

func (g Gorm) FindApply(ctx context.Context, userID, friendID int64) (*domain.ContactApply, error) {
	return FindApply(ctx, g.db(ctx), userID, friendID)
}

func (g Gorm) CreateApply(ctx context.Context, a *domain.ContactApply) error {
	return CreateApply(ctx, g.db(ctx), a)
}

func (g Gorm) ResetApplyToPending(ctx context.Context, id int64, description string, now time.Time) error {
	return ResetApplyToPending(ctx, g.db(ctx), id, description, now)
}

func (g Gorm) TransitionApply(ctx context.Context, id int64, from, to domain.ApplyStatus) (bool, error) {
	return TransitionApply(ctx, g.db(ctx), id, from, to)
}

func (g Gorm) ListAppliesTo(ctx context.Context, friendID int64, limit int) ([]domain.ContactApply, error) {
	return ListAppliesTo(ctx, g.db(ctx), friendID, limit)
}

func (g Gorm) CountUnreadApplies(ctx context.Context, friendID int64) (int64, error) {
	return CountUnreadApplies(ctx, g.db(ctx), friendID)
}

func (g Gorm) MarkAppliesRead(ctx context.Context, friendID int64) (int64, error) {
	return MarkAppliesRead(ctx, g.db(ctx), friendID)
}

func (g Gorm) ContactExists(ctx context.Context, userID, friendID int64) (bool, error) {
	return ContactExists(ctx, g.db(ctx), userID, friendID)
}

func (g Gorm) FindContact(ctx context.Context, userID, friendID int64) (*domain.Contact, error) {
	return FindContact(ctx, g.db(ctx), userID, friendID)
}

func (g Gorm) GetContact(ctx context.Context, id int64) (*domain.Contact, error) {
	return GetContact(ctx, g.db(ctx), id)
}

func (g Gorm) ListContacts(ctx context.Context, userID int64) ([]domain.Contact, error) {
	return ListContacts(ctx, g.db(ctx), userID)
}

func (g Gorm) CreateContacts(ctx context.Context, rows []*domain.Contact) error {
	return CreateContacts(ctx, g.db(ctx), rows)
}

func (g Gorm) UpdateContactRemark(ctx context.Context, id, ownerID int64, remark string) error {
	return UpdateContactRemark(ctx, g.db(ctx), id, ownerID, remark)
}

func (g Gorm) DeleteContact(ctx context.Context, id, ownerID int64) error {
	return DeleteContact(ctx, g.db(ctx), id, ownerID)
}

func (g Gorm) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	return CreateConversation(ctx, g.db(ctx), c)
}

func (g Gorm) CreateMembers(ctx context.Context, rows []*domain.ConversationMember) error {
	return CreateMembers(ctx, g.db(ctx), rows)
}

func (g Gorm) SoftDeleteMember(ctx context.Context, conversationID, userID int64) error {
	return SoftDeleteMember(ctx, g.db(ctx), conversationID, userID)
}

func (g Gorm) RestoreMember(ctx context.Context, conversationID, userID int64, now time.Time) error {
	return RestoreMember(ctx, g.db(ctx), conversationID, userID, now)
}
