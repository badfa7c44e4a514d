// Package domain defines the persistence models for users, contact
// applications, contacts and conversations. These types are mapped with GORM
// and shared by the repository and service layers.
package domain

import "time"

// ApplyStatus is the lifecycle state of a contact application.
type ApplyStatus int8

const (
	ApplyPending  ApplyStatus = 0
	ApplyAccepted ApplyStatus = 1
	ApplyRejected ApplyStatus = 2
)

func (s ApplyStatus) String() string {
	switch s {
	case ApplyPending:
		return "PENDING"
	case ApplyAccepted:
		return "ACCEPTED"
	case ApplyRejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// ConversationType distinguishes one-to-one chats from multi-party ones.
type ConversationType int8

const (
	ConversationPrivate ConversationType = 0
	ConversationGroup   ConversationType = 1
	ConversationChannel ConversationType = 2
)

// ConversationStatus is the administrative state of a conversation.
type ConversationStatus int8

const (
	ConversationDisbanded ConversationStatus = 0
	ConversationNormal    ConversationStatus = 1
	ConversationBanned    ConversationStatus = 2
)

// MemberRole is a member's privilege level inside a conversation.
type MemberRole int8

const (
	RoleMember MemberRole = 0
	RoleAdmin  MemberRole = 1
	RoleOwner  MemberRole = 2
)

// User is an account as far as the relationship core needs it.
//
// Fields:
//   - ID: autoincrement primary key.
//   - Username: unique login name; contact applications address users by it.
//   - Nickname / Avatar / Gender / Bio: public profile shown to peers.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Nickname  string    `json:"nickname"   gorm:"type:varchar(64);not null;default:''"`
	Avatar    string    `json:"avatar"     gorm:"type:varchar(512);not null;default:''"`
	Gender    int8      `json:"gender"     gorm:"not null;default:0"`
	Bio       string    `json:"bio"        gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ContactApply is a friend request from UserID to FriendID.
//
// One row exists per ordered (proposer, recipient) pair; a handled row is
// reset to pending on a new proposal instead of inserting a duplicate. The
// unique index ux_apply_pair backs that rule in storage.
type ContactApply struct {
	ID          int64       `json:"id"          gorm:"primaryKey;autoIncrement"`
	UserID      int64       `json:"user_id"     gorm:"not null;uniqueIndex:ux_apply_pair,priority:1"`
	FriendID    int64       `json:"friend_id"   gorm:"not null;uniqueIndex:ux_apply_pair,priority:2;index:idx_apply_inbox,priority:1"`
	Status      ApplyStatus `json:"status"      gorm:"not null;default:0;index:idx_apply_inbox,priority:2;check:status IN (0,1,2)"`
	IsRead      bool        `json:"is_read"     gorm:"not null;default:false"`
	Description string      `json:"description" gorm:"type:varchar(255);not null;default:''"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName returns the database table name for ContactApply.
func (ContactApply) TableName() string { return "contact_applies" }

// Contact is one direction of an accepted relationship. Accepting an apply
// writes two rows, owner to peer and peer to owner, sharing ConversationID.
type Contact struct {
	ID             int64     `json:"id"              gorm:"primaryKey;autoIncrement"`
	UserID         int64     `json:"user_id"         gorm:"not null;uniqueIndex:ux_contact_pair,priority:1"`
	FriendID       int64     `json:"friend_id"       gorm:"not null;uniqueIndex:ux_contact_pair,priority:2"`
	ConversationID int64     `json:"conversation_id" gorm:"not null;index"`
	Remark         string    `json:"remark"          gorm:"type:varchar(64);not null;default:''"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// Conversation is the chat container created for an accepted pair.
type Conversation struct {
	ID        int64              `json:"id"         gorm:"primaryKey;autoIncrement"`
	Type      ConversationType   `json:"type"       gorm:"not null;default:0"`
	Title     string             `json:"title"      gorm:"type:varchar(128);not null;default:''"`
	Avatar    string             `json:"avatar"     gorm:"type:varchar(512);not null;default:''"`
	OwnerID   int64              `json:"owner_id"   gorm:"not null;default:0"`
	Status    ConversationStatus `json:"status"     gorm:"not null"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// ConversationMember links a user to a conversation. Leaving is a soft
// delete through IsDeleted so history stays attributable.
type ConversationMember struct {
	ID                int64      `json:"id"                   gorm:"primaryKey;autoIncrement"`
	ConversationID    int64      `json:"conversation_id"      gorm:"not null;uniqueIndex:ux_member,priority:1"`
	UserID            int64      `json:"user_id"              gorm:"not null;uniqueIndex:ux_member,priority:2;index"`
	Role              MemberRole `json:"role"                 gorm:"not null;default:0"`
	IsMuted           bool       `json:"is_muted"             gorm:"not null;default:false"`
	IsDeleted         bool       `json:"is_deleted"           gorm:"not null;default:false"`
	LastReadMessageID int64      `json:"last_read_message_id" gorm:"not null;default:0"`
	JoinedAt          time.Time  `json:"joined_at"`
}

// TableName returns the database table name for ConversationMember.
func (ConversationMember) TableName() string { return "conversation_members" }
