package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-im-core/internal/repo"
)

func TestUserService_GetCachesProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.users.Get(ctx, h.alice.ID)
	if err != nil || u.Nickname != "Alice" || u.Username != "alice" {
		t.Fatalf("Get: %+v %v", u, err)
	}
	key := h.deps.Caches.Users.Key(h.alice.ID)
	if !h.mr.Exists(key) {
		t.Fatalf("%s must be cached", key)
	}

	// a direct storage change is invisible until the entry is invalidated
	if err := h.db.Table("users").Where("id = ?", h.alice.ID).Update("nickname", "Changed").Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if u, _ := h.users.Get(ctx, h.alice.ID); u.Nickname != "Alice" {
		t.Fatalf("expected cached nickname, got %q", u.Nickname)
	}
	if err := h.deps.Caches.Users.Invalidate(ctx, h.alice.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if u, _ := h.users.Get(ctx, h.alice.ID); u.Nickname != "Changed" {
		t.Fatalf("expected fresh nickname, got %q", u.Nickname)
	}
}

func TestUserService_GetUnknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.users.Get(ctx, 404); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	// confirmed absence is cached as a tombstone
	if !h.mr.Exists(h.deps.Caches.Users.Key(404)) {
		t.Fatal("expected a negative entry")
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.users.Get(ctx, h.bob.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	nick, bio := "  Bobby  ", "likes\n\ngo"
	u, err := h.users.UpdateProfile(ctx, h.bob.ID, ProfileInput{Nickname: &nick, Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Nickname != "Bobby" || u.Bio != "likes go" || u.Avatar != "bob.png" {
		t.Fatalf("unexpected profile: %+v", u)
	}

	if _, err := h.users.UpdateProfile(ctx, 404, ProfileInput{Nickname: &nick}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"  a  b ": "a b",
		"e\u0301": "\u00e9",
		"x\t\ny":  "x y",
		"":        "",
	}
	for in, want := range cases {
		if got := normalizeText(in); got != want {
			t.Errorf("normalizeText(%q) = %q, want %q", in, got, want)
		}
	}
	if got := clipRunes("héllo", 2); got != "hé" {
		t.Errorf("clipRunes = %q", got)
	}
}

func TestNewAccount_StoredFormMatchesProposeLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// "josé" typed with a combining accent
	u := NewAccount("  jose\u0301 ", "", " avatar.png ")
	if u.Username != "jos\u00e9" || u.Nickname != "jos\u00e9" || u.Avatar != "avatar.png" {
		t.Fatalf("unexpected account: %+v", u)
	}
	if err := repo.CreateUser(ctx, h.db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for _, target := range []string{"jose\u0301", "jos\u00e9"} {
		res, err := h.apply.Propose(ctx, h.alice.ID, target, "")
		if err != nil {
			t.Fatalf("Propose(%q): %v", target, err)
		}
		if a, _ := repo.GetApply(ctx, h.db, res.ApplyID); a.FriendID != u.ID {
			t.Fatalf("Propose(%q) addressed %d, want %d", target, a.FriendID, u.ID)
		}
	}

	if got := NewAccount("carl", "  Carl \t the  cat ", "").Nickname; got != "Carl the cat" {
		t.Fatalf("nickname not normalized: %q", got)
	}
}
