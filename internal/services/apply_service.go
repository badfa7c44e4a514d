// Package services – ApplyService
//
// ApplyService runs the contact application state machine:
//
//	NONE -> PENDING -> ACCEPTED | REJECTED
//
// Every transition runs under two leases. The outer one is fail-fast and
// keyed on the call itself, so a double submit is rejected with ErrTooBusy.
// The inner one is keyed on the unordered user pair and waits a bounded
// time, so transitions touching the same pair from either side are applied
// one after another. Writes happen in one transaction per transition; cache
// invalidations run inside it and again after commit; pushes go out only
// after commit.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/lock"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/txn"
)

const (
	msgProposeBusy = "application is being submitted, please do not repeat"
	msgHandleBusy  = "application is being handled, please try again later"
	msgPairBusy    = "another change to this contact is in progress, please try again later"
)

// ProposeResult describes the effect of Propose.
type ProposeResult struct {
	ApplyID int64              `json:"applyId"`
	Status  domain.ApplyStatus `json:"status"`
	// Collapsed is set when a pending reverse application was accepted
	// instead of creating a new one.
	Collapsed      bool  `json:"collapsed"`
	ConversationID int64 `json:"conversationId,omitempty"`
}

// HandleResult describes the effect of Handle.
type HandleResult struct {
	ApplyID        int64              `json:"applyId"`
	Status         domain.ApplyStatus `json:"status"`
	ConversationID int64              `json:"conversationId,omitempty"`
}

// ApplyView is one received application as shown to its recipient.
type ApplyView struct {
	ApplyID     int64              `json:"applyId"`
	UserID      int64              `json:"userId"`
	Nickname    string             `json:"nickname"`
	Avatar      string             `json:"avatar"`
	Description string             `json:"description"`
	Status      domain.ApplyStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdTime"`
}

// ApplyService implements the application use cases.
type ApplyService struct {
	Deps
	now func() time.Time
}

func NewApplyService(d Deps) *ApplyService {
	return &ApplyService{Deps: d, now: func() time.Time { return time.Now().UTC() }}
}

func (s *ApplyService) tracer() trace.Tracer { return otel.Tracer("services/ApplyService") }

func (s *ApplyService) guard(wait time.Duration, msg string) lock.Options {
	return lock.Options{Wait: wait, Lease: s.LockLease, Message: msg, Log: &s.Log}
}

// Propose sends a contact application from userID to the user named
// targetName. If targetName already has a pending application to userID,
// that one is accepted instead.
func (s *ApplyService) Propose(ctx context.Context, userID int64, targetName, description string) (*ProposeResult, error) {
	targetName = NormalizeUsername(targetName)
	description = clipRunes(normalizeText(description), maxDescriptionLen)

	ctx, span := s.tracer().Start(ctx, "Propose", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("target.name", targetName),
	))
	defer span.End()

	res, err := lock.Guard(ctx, s.Locker, proposeKey(userID, targetName), s.guard(0, msgProposeBusy),
		func(ctx context.Context) (*ProposeResult, error) {
			target, err := s.Repo.GetUserByUsername(ctx, targetName)
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrTargetNotFound
			}
			if err != nil {
				return nil, err
			}
			if target.ID == userID {
				return nil, ErrSelfApply
			}
			return lock.Guard(ctx, s.Locker, pairKey(userID, target.ID), s.guard(s.PairWait, msgPairBusy),
				func(ctx context.Context) (*ProposeResult, error) {
					return s.proposeLocked(ctx, userID, target.ID, description)
				})
		})
	if err != nil {
		recordErr(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("apply.id", res.ApplyID), attribute.Bool("apply.collapsed", res.Collapsed))
	return res, nil
}

func (s *ApplyService) proposeLocked(ctx context.Context, userID, targetID int64, description string) (*ProposeResult, error) {
	// authoritative check against storage, never the contact cache
	exists, err := s.Repo.ContactExists(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrContactExists
	}

	reverse, err := s.Repo.FindApply(ctx, targetID, userID)
	switch {
	case err == nil && reverse.Status == domain.ApplyPending:
		convID, err := s.acceptLocked(ctx, reverse)
		if err != nil {
			return nil, err
		}
		return &ProposeResult{ApplyID: reverse.ID, Status: domain.ApplyAccepted, Collapsed: true, ConversationID: convID}, nil
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	var (
		res    ProposeResult
		notify bool
	)
	err = s.UoW.Do(ctx, func(ctx context.Context, _ *gorm.DB) error {
		now := s.now()
		existing, err := s.Repo.FindApply(ctx, userID, targetID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			a := &domain.ContactApply{UserID: userID, FriendID: targetID, Status: domain.ApplyPending, Description: description, CreatedAt: now}
			if err := s.Repo.CreateApply(ctx, a); err != nil {
				return err
			}
			res = ProposeResult{ApplyID: a.ID, Status: domain.ApplyPending}
		case err != nil:
			return err
		case existing.Status == domain.ApplyPending:
			// already submitted; the first call did all the work
			res = ProposeResult{ApplyID: existing.ID, Status: domain.ApplyPending}
			return nil
		default:
			if err := s.Repo.ResetApplyToPending(ctx, existing.ID, description, now); err != nil {
				return err
			}
			res = ProposeResult{ApplyID: existing.ID, Status: domain.ApplyPending}
		}

		if err := s.Caches.Applies.Invalidate(ctx, targetID); err != nil {
			return err
		}
		notify = true
		notice := ApplyNotice{ApplyID: res.ApplyID, SenderID: userID, Description: description, CreateTime: now}
		txn.AfterCommit(ctx, s.Log, func(ctx context.Context) {
			invalidateQuietly(ctx, s.Log, "contact_applies", func() error { return s.Caches.Applies.Invalidate(ctx, targetID) })
			s.pushApply(ctx, targetID, notice)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notify {
		s.Log.Info().Int64("user_id", userID).Int64("target_id", targetID).Int64("apply_id", res.ApplyID).Msg("contact application submitted")
	}
	return &res, nil
}

// Handle lets the recipient accept or reject application applyID.
func (s *ApplyService) Handle(ctx context.Context, handlerID, applyID int64, agree bool) (*HandleResult, error) {
	ctx, span := s.tracer().Start(ctx, "Handle", trace.WithAttributes(
		attribute.Int64("user.id", handlerID),
		attribute.Int64("apply.id", applyID),
		attribute.Bool("apply.agree", agree),
	))
	defer span.End()

	res, err := lock.Guard(ctx, s.Locker, handleKey(applyID), s.guard(0, msgHandleBusy),
		func(ctx context.Context) (*HandleResult, error) {
			a, err := s.loadHandleable(ctx, handlerID, applyID)
			if err != nil {
				return nil, err
			}
			return lock.Guard(ctx, s.Locker, pairKey(a.UserID, a.FriendID), s.guard(s.PairWait, msgPairBusy),
				func(ctx context.Context) (*HandleResult, error) {
					// re-read under the pair lease; a collapse may have won the race
					a, err := s.loadHandleable(ctx, handlerID, applyID)
					if err != nil {
						return nil, err
					}
					if !agree {
						if err := s.rejectLocked(ctx, a); err != nil {
							return nil, err
						}
						return &HandleResult{ApplyID: a.ID, Status: domain.ApplyRejected}, nil
					}
					convID, err := s.acceptLocked(ctx, a)
					if err != nil {
						return nil, err
					}
					return &HandleResult{ApplyID: a.ID, Status: domain.ApplyAccepted, ConversationID: convID}, nil
				})
		})
	if err != nil {
		recordErr(span, err)
		return nil, err
	}
	return res, nil
}

func (s *ApplyService) loadHandleable(ctx context.Context, handlerID, applyID int64) (*domain.ContactApply, error) {
	a, err := s.Repo.GetApply(ctx, applyID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrApplyNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.FriendID != handlerID {
		return nil, ErrNotRecipient
	}
	if a.Status != domain.ApplyPending {
		return nil, ErrApplyHandled
	}
	return a, nil
}

func (s *ApplyService) rejectLocked(ctx context.Context, a *domain.ContactApply) error {
	return s.UoW.Do(ctx, func(ctx context.Context, _ *gorm.DB) error {
		ok, err := s.Repo.TransitionApply(ctx, a.ID, domain.ApplyPending, domain.ApplyRejected)
		if err != nil {
			return err
		}
		if !ok {
			return ErrApplyHandled
		}
		if err := s.Caches.Applies.Invalidate(ctx, a.FriendID); err != nil {
			return err
		}
		txn.AfterCommit(ctx, s.Log, func(ctx context.Context) {
			invalidateQuietly(ctx, s.Log, "contact_applies", func() error { return s.Caches.Applies.Invalidate(ctx, a.FriendID) })
			s.pushReply(ctx, a.UserID, ReplyNotice{ApplyID: a.ID, UserID: a.FriendID, Agree: false})
		})
		return nil
	})
}

// acceptLocked marks a accepted and creates the conversation, both contact
// rows and both memberships in one transaction. If one direction of the
// relationship survived an earlier one-sided delete, its conversation is
// reused and the missing side restored.
func (s *ApplyService) acceptLocked(ctx context.Context, a *domain.ContactApply) (int64, error) {
	proposer, handler := a.UserID, a.FriendID
	var convID int64

	err := s.UoW.Do(ctx, func(ctx context.Context, _ *gorm.DB) error {
		if err := s.Caches.Contacts.Invalidate(ctx, proposer, handler); err != nil {
			return err
		}
		if err := s.Caches.Applies.Invalidate(ctx, handler); err != nil {
			return err
		}

		ok, err := s.Repo.TransitionApply(ctx, a.ID, domain.ApplyPending, domain.ApplyAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return ErrApplyHandled
		}

		now := s.now()
		fwd, err := findContact(ctx, s.Repo, proposer, handler)
		if err != nil {
			return err
		}
		back, err := findContact(ctx, s.Repo, handler, proposer)
		if err != nil {
			return err
		}

		switch {
		case fwd != nil && back != nil:
			return ErrContactExists
		case fwd != nil || back != nil:
			survivor, missingOwner, missingPeer := fwd, handler, proposer
			if back != nil {
				survivor, missingOwner, missingPeer = back, proposer, handler
			}
			convID = survivor.ConversationID
			if err := s.Repo.CreateContacts(ctx, []*domain.Contact{{UserID: missingOwner, FriendID: missingPeer, ConversationID: convID, CreatedAt: now}}); err != nil {
				return err
			}
			if err := s.Repo.RestoreMember(ctx, convID, missingOwner, now); err != nil {
				return err
			}
		default:
			conv := &domain.Conversation{Type: domain.ConversationPrivate, Status: domain.ConversationNormal}
			if err := s.Repo.CreateConversation(ctx, conv); err != nil {
				return err
			}
			convID = conv.ID
			if err := s.Repo.CreateContacts(ctx, []*domain.Contact{
				{UserID: proposer, FriendID: handler, ConversationID: convID, CreatedAt: now},
				{UserID: handler, FriendID: proposer, ConversationID: convID, CreatedAt: now},
			}); err != nil {
				return err
			}
			if err := s.Repo.CreateMembers(ctx, []*domain.ConversationMember{
				{ConversationID: convID, UserID: proposer, Role: domain.RoleMember, JoinedAt: now},
				{ConversationID: convID, UserID: handler, Role: domain.RoleMember, JoinedAt: now},
			}); err != nil {
				return err
			}
		}

		notice := ReplyNotice{ApplyID: a.ID, UserID: handler, Agree: true, ConversationID: convID}
		txn.AfterCommit(ctx, s.Log, func(ctx context.Context) {
			invalidateQuietly(ctx, s.Log, "contacts", func() error { return s.Caches.Contacts.Invalidate(ctx, proposer, handler) })
			invalidateQuietly(ctx, s.Log, "contact_applies", func() error { return s.Caches.Applies.Invalidate(ctx, handler) })
			s.pushReply(ctx, proposer, notice)
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return 0, ErrContactExists
		}
		return 0, err
	}
	s.Log.Info().Int64("apply_id", a.ID).Int64("conversation_id", convID).Msg("contact application accepted")
	return convID, nil
}

// ListReceived returns the pending applications addressed to userID, newest
// first, with sender profiles resolved in one batch.
func (s *ApplyService) ListReceived(ctx context.Context, userID int64) ([]ApplyView, error) {
	ctx, span := s.tracer().Start(ctx, "ListReceived", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	entries, _, err := s.Caches.Applies.Get(ctx, userID, func(ctx context.Context, id int64) ([]ApplyEntry, bool, error) {
		rows, err := s.Repo.ListAppliesTo(ctx, id, s.ApplyListLimit)
		if err != nil {
			return nil, false, err
		}
		out := make([]ApplyEntry, len(rows))
		for i, r := range rows {
			out[i] = ApplyEntry{ApplyID: r.ID, UserID: r.UserID, Status: r.Status, Description: r.Description, CreatedAt: r.CreatedAt}
		}
		return out, len(out) > 0, nil
	})
	if err != nil {
		recordErr(span, err)
		return nil, err
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	infos, err := userInfos(ctx, s.Deps, ids)
	if err != nil {
		recordErr(span, err)
		return nil, err
	}

	views := make([]ApplyView, len(entries))
	for i, e := range entries {
		v := ApplyView{ApplyID: e.ApplyID, UserID: e.UserID, Description: e.Description, Status: e.Status, CreatedAt: e.CreatedAt, Nickname: UnknownNickname}
		if u, ok := infos[e.UserID]; ok {
			v.Nickname, v.Avatar = u.Nickname, u.Avatar
		}
		views[i] = v
	}
	return views, nil
}

// UnreadCount returns how many received applications userID has not seen.
func (s *ApplyService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.Repo.CountUnreadApplies(ctx, userID)
}

// MarkAllRead flags every received application of userID as seen.
func (s *ApplyService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.Repo.MarkAppliesRead(ctx, userID)
}

func (s *ApplyService) pushApply(ctx context.Context, to int64, n ApplyNotice) {
	if info, ok, err := userInfo(ctx, s.Deps, n.SenderID); err != nil {
		s.Log.Warn().Err(err).Int64("user_id", n.SenderID).Msg("sender profile unavailable for push")
		n.Nickname = UnknownNickname
	} else if ok {
		n.Nickname, n.Avatar = info.Nickname, info.Avatar
	} else {
		n.Nickname = UnknownNickname
	}
	s.notifier().NotifyApply(ctx, to, n)
}

func (s *ApplyService) pushReply(ctx context.Context, to int64, n ReplyNotice) {
	if info, ok, err := userInfo(ctx, s.Deps, n.UserID); err == nil && ok {
		n.Nickname, n.Avatar = info.Nickname, info.Avatar
	} else {
		n.Nickname = UnknownNickname
	}
	s.notifier().NotifyReply(ctx, to, n)
}

func findContact(ctx context.Context, r Repository, userID, friendID int64) (*domain.Contact, error) {
	c, err := r.FindContact(ctx, userID, friendID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func recordErr(span trace.Span, err error) {
	// business outcomes are not span errors
	if KindOf(err) != 0 || errors.Is(err, ErrTooBusy) {
		span.SetAttributes(attribute.String("outcome", err.Error()))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
