// Package services – ContactService
//
// ContactService serves a user's contact list and the owner-only mutations
// on a single row. Rows are one-sided: deleting or renaming your row never
// touches the peer's.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/txn"
)

// ContactView is one row of a contact list.
type ContactView struct {
	ContactID      int64  `json:"contactId"`
	FriendID       int64  `json:"friendId"`
	ConversationID int64  `json:"conversationId"`
	Remark         string `json:"remark"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"avatar"`
}

// ContactService implements the contact use cases.
type ContactService struct {
	Deps
}

func NewContactService(d Deps) *ContactService { return &ContactService{Deps: d} }

func (s *ContactService) tracer() trace.Tracer { return otel.Tracer("services/ContactService") }

// List returns userID's contacts with peer profiles resolved in one batch.
func (s *ContactService) List(ctx context.Context, userID int64) ([]ContactView, error) {
	ctx, span := s.tracer().Start(ctx, "List", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	entries, _, err := s.Caches.Contacts.Get(ctx, userID, func(ctx context.Context, id int64) ([]ContactEntry, bool, error) {
		rows, err := s.Repo.ListContacts(ctx, id)
		if err != nil {
			return nil, false, err
		}
		out := make([]ContactEntry, len(rows))
		for i, r := range rows {
			out[i] = ContactEntry{ContactID: r.ID, FriendID: r.FriendID, ConversationID: r.ConversationID, Remark: r.Remark}
		}
		return out, len(out) > 0, nil
	})
	if err != nil {
		recordErr(span, err)
		return nil, err
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.FriendID
	}
	infos, err := userInfos(ctx, s.Deps, ids)
	if err != nil {
		recordErr(span, err)
		return nil, err
	}

	out := make([]ContactView, len(entries))
	for i, e := range entries {
		v := ContactView{ContactID: e.ContactID, FriendID: e.FriendID, ConversationID: e.ConversationID, Remark: e.Remark, Nickname: UnknownNickname}
		if u, ok := infos[e.FriendID]; ok {
			v.Nickname, v.Avatar = u.Nickname, u.Avatar
		}
		out[i] = v
	}
	return out, nil
}

// UpdateRemark sets the display remark of contactID, which userID must own.
func (s *ContactService) UpdateRemark(ctx context.Context, userID, contactID int64, remark string) error {
	ctx, span := s.tracer().Start(ctx, "UpdateRemark", trace.WithAttributes(
		attribute.Int64("user.id", userID), attribute.Int64("contact.id", contactID)))
	defer span.End()

	remark = clipRunes(normalizeText(remark), maxRemarkLen)
	if _, err := s.owned(ctx, userID, contactID); err != nil {
		recordErr(span, err)
		return err
	}

	err := s.UoW.Do(ctx, func(ctx context.Context, _ *gorm.DB) error {
		if err := s.Repo.UpdateContactRemark(ctx, contactID, userID, remark); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrContactNotFound
			}
			return err
		}
		return s.invalidate(ctx, userID)
	})
	if err != nil {
		recordErr(span, err)
	}
	return err
}

// Delete removes userID's contact row contactID and marks userID's
// membership in the shared conversation as deleted.
func (s *ContactService) Delete(ctx context.Context, userID, contactID int64) error {
	ctx, span := s.tracer().Start(ctx, "Delete", trace.WithAttributes(
		attribute.Int64("user.id", userID), attribute.Int64("contact.id", contactID)))
	defer span.End()

	c, err := s.owned(ctx, userID, contactID)
	if err != nil {
		recordErr(span, err)
		return err
	}
	if c.ConversationID == 0 {
		recordErr(span, ErrConversationMissing)
		return ErrConversationMissing
	}

	err = s.UoW.Do(ctx, func(ctx context.Context, _ *gorm.DB) error {
		if err := s.Repo.DeleteContact(ctx, contactID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrContactNotFound
			}
			return err
		}
		// a missing membership row is not worth failing the delete over
		if err := s.Repo.SoftDeleteMember(ctx, c.ConversationID, userID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		return s.invalidate(ctx, userID)
	})
	if err != nil {
		recordErr(span, err)
		return err
	}
	s.Log.Info().Int64("user_id", userID).Int64("contact_id", contactID).Msg("contact deleted")
	return nil
}

func (s *ContactService) owned(ctx context.Context, userID, contactID int64) (*domain.Contact, error) {
	c, err := s.Repo.GetContact(ctx, contactID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}
	return c, nil
}

func (s *ContactService) invalidate(ctx context.Context, userID int64) error {
	if err := s.Caches.Contacts.Invalidate(ctx, userID); err != nil {
		return err
	}
	txn.AfterCommit(ctx, s.Log, func(ctx context.Context) {
		invalidateQuietly(ctx, s.Log, "contacts", func() error { return s.Caches.Contacts.Invalidate(ctx, userID) })
	})
	return nil
}
