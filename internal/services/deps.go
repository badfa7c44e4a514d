package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-im-core/internal/cache"
	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/lock"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/txn"
)

// Repository is the storage contract of the services. Calls made inside
// txn.UnitOfWork.Do run on that transaction. repo.Gorm implements it.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUsers(ctx context.Context, ids []int64) ([]domain.User, error)
	UpdateUserProfile(ctx context.Context, id int64, p repo.ProfileUpdate) error

	GetApply(ctx context.Context, id int64) (*domain.ContactApply, error)
	FindApply(ctx context.Context, userID, friendID int64) (*domain.ContactApply, error)
	CreateApply(ctx context.Context, a *domain.ContactApply) error
	ResetApplyToPending(ctx context.Context, id int64, description string, now time.Time) error
	TransitionApply(ctx context.Context, id int64, from, to domain.ApplyStatus) (bool, error)
	ListAppliesTo(ctx context.Context, friendID int64, limit int) ([]domain.ContactApply, error)
	CountUnreadApplies(ctx context.Context, friendID int64) (int64, error)
	MarkAppliesRead(ctx context.Context, friendID int64) (int64, error)

	ContactExists(ctx context.Context, userID, friendID int64) (bool, error)
	FindContact(ctx context.Context, userID, friendID int64) (*domain.Contact, error)
	GetContact(ctx context.Context, id int64) (*domain.Contact, error)
	ListContacts(ctx context.Context, userID int64) ([]domain.Contact, error)
	CreateContacts(ctx context.Context, rows []*domain.Contact) error
	UpdateContactRemark(ctx context.Context, id, ownerID int64, remark string) error
	DeleteContact(ctx context.Context, id, ownerID int64) error

	CreateConversation(ctx context.Context, c *domain.Conversation) error
	CreateMembers(ctx context.Context, rows []*domain.ConversationMember) error
	SoftDeleteMember(ctx context.Context, conversationID, userID int64) error
	RestoreMember(ctx context.Context, conversationID, userID int64, now time.Time) error
}

var _ Repository = repo.Gorm{}

// ApplyNotice is pushed to the recipient of a new application.
type ApplyNotice struct {
	ApplyID     int64     `json:"applyId"`
	SenderID    int64     `json:"senderId"`
	Nickname    string    `json:"nickname"`
	Avatar      string    `json:"avatar"`
	Description string    `json:"description"`
	CreateTime  time.Time `json:"createTime"`
}

// ReplyNotice is pushed to the proposer once the recipient decided.
type ReplyNotice struct {
	ApplyID        int64  `json:"applyId"`
	UserID         int64  `json:"userId"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"avatar"`
	Agree          bool   `json:"agree"`
	ConversationID int64  `json:"conversationId,omitempty"`
}

// Notifier delivers relationship events to online users. Delivery is best
// effort; implementations must not block on slow peers or return errors.
type Notifier interface {
	NotifyApply(ctx context.Context, receiverID int64, n ApplyNotice)
	NotifyReply(ctx context.Context, receiverID int64, n ReplyNotice)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) NotifyApply(context.Context, int64, ApplyNotice) {}
func (NopNotifier) NotifyReply(context.Context, int64, ReplyNotice) {}

// UserInfo is the cached public profile of a user.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Gender   int8   `json:"gender"`
	Bio      string `json:"bio"`
}

// ContactEntry is the cached minimal form of a contact row.
type ContactEntry struct {
	ContactID      int64  `json:"contactId"`
	FriendID       int64  `json:"friendId"`
	ConversationID int64  `json:"conversationId"`
	Remark         string `json:"remark"`
}

// ApplyEntry is the cached minimal form of a received application.
type ApplyEntry struct {
	ApplyID     int64              `json:"applyId"`
	UserID      int64              `json:"userId"`
	Status      domain.ApplyStatus `json:"status"`
	Description string             `json:"description"`
	CreatedAt   time.Time          `json:"createdTime"`
}

// CacheConfig holds the TTL policy of every namespace.
type CacheConfig struct {
	UserTTL     time.Duration
	ContactsTTL time.Duration
	AppliesTTL  time.Duration
	Jitter      time.Duration
	NegativeTTL time.Duration
}

// Caches groups the namespaces shared by the services.
type Caches struct {
	Users    *cache.Namespace[int64, UserInfo]
	Contacts *cache.Namespace[int64, []ContactEntry]
	Applies  *cache.Namespace[int64, []ApplyEntry]
}

// NewCaches builds the namespaces over store.
func NewCaches(store cache.Store, cfg CacheConfig, log zerolog.Logger) (*Caches, error) {
	users, err := cache.NewNamespace[int64, UserInfo]("user_info", "user:info:", store,
		cache.TTL{Base: cfg.UserTTL, Jitter: cfg.Jitter, Negative: cfg.NegativeTTL}, log)
	if err != nil {
		return nil, err
	}
	contacts, err := cache.NewNamespace[int64, []ContactEntry]("contacts", "user:contacts:", store,
		cache.TTL{Base: cfg.ContactsTTL, Jitter: cfg.Jitter, Negative: cfg.NegativeTTL}, log)
	if err != nil {
		return nil, err
	}
	applies, err := cache.NewNamespace[int64, []ApplyEntry]("contact_applies", "user:contact:applies:", store,
		cache.TTL{Base: cfg.AppliesTTL, Jitter: cfg.Jitter, Negative: cfg.NegativeTTL}, log)
	if err != nil {
		return nil, err
	}
	return &Caches{Users: users, Contacts: contacts, Applies: applies}, nil
}

// Deps is the shared wiring of every service.
type Deps struct {
	Repo     Repository
	UoW      *txn.UnitOfWork
	Locker   lock.Locker
	Caches   *Caches
	Notifier Notifier
	Log      zerolog.Logger

	// LockLease bounds every guard; zero selects watchdog renewal.
	LockLease time.Duration
	// PairWait is how long a transition waits for another one on the same pair.
	PairWait time.Duration
	// ApplyListLimit caps the received-applications view.
	ApplyListLimit int
}

func (d Deps) notifier() Notifier {
	if d.Notifier == nil {
		return NopNotifier{}
	}
	return d.Notifier
}

// Lock keys. All are resolved from call arguments before the guard runs.

func proposeKey(userID int64, targetName string) string {
	return fmt.Sprintf("lock:contact:apply:%d:%s", userID, targetName)
}

func handleKey(applyID int64) string {
	return fmt.Sprintf("lock:contact:handle:%d", applyID)
}

// pairKey is the same for (a, b) and (b, a).
func pairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("lock:contact:pair:%d:%d", a, b)
}

func toUserInfo(u *domain.User) UserInfo {
	return UserInfo{
		ID:       u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Avatar:   u.Avatar,
		Gender:   u.Gender,
		Bio:      u.Bio,
	}
}

// invalidateQuietly runs a post-commit invalidation. The entry was already
// dropped inside the transaction, so a failure here only widens the
// staleness window to the namespace TTL.
func invalidateQuietly(ctx context.Context, log zerolog.Logger, ns string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn().Err(err).Str("namespace", ns).Msg("post-commit cache invalidation failed")
	}
}
