// Package services – UserService
//
// UserService serves public profiles through the user info cache and keeps
// that cache consistent when a profile changes.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/sysutil"
	"github.com/tbourn/go-im-core/internal/txn"
)

// UnknownNickname is shown for users that no longer exist.
const UnknownNickname = "unknown user"

// UserService reads and updates user profiles.
type UserService struct {
	Deps
}

func NewUserService(d Deps) *UserService { return &UserService{Deps: d} }

// Get returns the profile of id, or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id int64) (*UserInfo, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	info, ok, err := userInfo(ctx, s.Deps, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return &info, nil
}

// NewAccount builds the row for a new user with its username and nickname
// stored in the same form Propose looks them up in. An empty nickname
// falls back to the username.
func NewAccount(username, nickname, avatar string) *domain.User {
	username = NormalizeUsername(username)
	nickname = clipRunes(normalizeText(sysutil.FirstNonEmpty(nickname, username)), maxNicknameLen)
	return &domain.User{Username: username, Nickname: nickname, Avatar: strings.TrimSpace(avatar)}
}

// ProfileInput carries the optional profile changes of UpdateProfile.
type ProfileInput struct {
	Nickname *string
	Avatar   *string
	Gender   *int8
	Bio      *string
}

// UpdateProfile applies in to user id and invalidates the cached profile.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (*UserInfo, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	p := repo.ProfileUpdate{Avatar: in.Avatar, Gender: in.Gender}
	if in.Nickname != nil {
		n := clipRunes(normalizeText(*in.Nickname), maxNicknameLen)
		p.Nickname = &n
	}
	if in.Bio != nil {
		b := clipRunes(normalizeText(*in.Bio), maxBioLen)
		p.Bio = &b
	}

	err := s.UoW.Do(ctx, func(ctx context.Context, _ *gorm.DB) error {
		if err := s.Repo.UpdateUserProfile(ctx, id, p); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := s.Caches.Users.Invalidate(ctx, id); err != nil {
			return err
		}
		txn.AfterCommit(ctx, s.Log, func(ctx context.Context) {
			invalidateQuietly(ctx, s.Log, "user_info", func() error { return s.Caches.Users.Invalidate(ctx, id) })
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.Get(ctx, id)
}

// userInfo resolves one profile through the cache.
func userInfo(ctx context.Context, d Deps, id int64) (UserInfo, bool, error) {
	return d.Caches.Users.Get(ctx, id, func(ctx context.Context, id int64) (UserInfo, bool, error) {
		u, err := d.Repo.GetUser(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return UserInfo{}, false, nil
		}
		if err != nil {
			return UserInfo{}, false, err
		}
		return toUserInfo(u), true, nil
	})
}

// userInfos resolves profiles in one cache round trip plus one batch query.
func userInfos(ctx context.Context, d Deps, ids []int64) (map[int64]UserInfo, error) {
	return d.Caches.Users.GetMany(ctx, ids, func(ctx context.Context, ids []int64) (map[int64]UserInfo, error) {
		rows, err := d.Repo.GetUsers(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make(map[int64]UserInfo, len(rows))
		for i := range rows {
			out[rows[i].ID] = toUserInfo(&rows[i])
		}
		return out, nil
	})
}
