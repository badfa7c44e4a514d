package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-im-core/internal/cache"
	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/lock"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/txn"
)

type sentApply struct {
	to      int64
	notice  ApplyNotice
	pending int64 // pending rows addressed to `to` when the push went out
}

type sentReply struct {
	to       int64
	notice   ReplyNotice
	contacts int64 // contact rows in storage when the push went out
}

// recorder is a Notifier that snapshots storage at delivery time, so tests
// can tell whether the push happened after the commit.
type recorder struct {
	db *gorm.DB

	mu      sync.Mutex
	applies []sentApply
	replies []sentReply
}

func (r *recorder) NotifyApply(ctx context.Context, to int64, n ApplyNotice) {
	var pending int64
	r.db.WithContext(ctx).Model(&domain.ContactApply{}).
		Where("friend_id = ? AND status = ?", to, domain.ApplyPending).Count(&pending)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applies = append(r.applies, sentApply{to: to, notice: n, pending: pending})
}

func (r *recorder) NotifyReply(ctx context.Context, to int64, n ReplyNotice) {
	var contacts int64
	r.db.WithContext(ctx).Model(&domain.Contact{}).Count(&contacts)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, sentReply{to: to, notice: n, contacts: contacts})
}

func (r *recorder) sentApplies() []sentApply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentApply(nil), r.applies...)
}

func (r *recorder) sentReplies() []sentReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentReply(nil), r.replies...)
}

type harness struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	deps     Deps
	notes    *recorder
	apply    *ApplyService
	contacts *ContactService
	users    *UserService

	alice, bob, carol *domain.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection: every statement inside a transaction must use it
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	caches, err := NewCaches(cache.NewRedisStore(rdb), CacheConfig{
		UserTTL:     10 * time.Minute,
		ContactsTTL: 10 * time.Minute,
		AppliesTTL:  10 * time.Minute,
		Jitter:      time.Minute,
		NegativeTTL: 30 * time.Second,
	}, log)
	if err != nil {
		t.Fatalf("caches: %v", err)
	}

	notes := &recorder{db: db}
	d := Deps{
		Repo:           repo.Gorm{DB: db},
		UoW:            txn.New(db, log),
		Locker:         lock.NewRedisLocker(rdb, log, lock.WithRetryInterval(5*time.Millisecond)),
		Caches:         caches,
		Notifier:       notes,
		Log:            log,
		LockLease:      10 * time.Second,
		PairWait:       5 * time.Second,
		ApplyListLimit: 50,
	}

	h := &harness{
		db:       db,
		mr:       mr,
		deps:     d,
		notes:    notes,
		apply:    NewApplyService(d),
		contacts: NewContactService(d),
		users:    NewUserService(d),
	}
	h.alice = h.seedUser(t, "alice", "Alice")
	h.bob = h.seedUser(t, "bob", "Bob")
	h.carol = h.seedUser(t, "carol", "Carol")
	return h
}

func (h *harness) seedUser(t *testing.T, username, nickname string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Nickname: nickname, Avatar: username + ".png"}
	if err := repo.CreateUser(context.Background(), h.db, u); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return u
}

func (h *harness) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := h.db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// befriend runs a full propose and accept between a and b.
func (h *harness) befriend(t *testing.T, a, b *domain.User) *HandleResult {
	t.Helper()
	ctx := context.Background()
	p, err := h.apply.Propose(ctx, a.ID, b.Username, "hi")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	res, err := h.apply.Handle(ctx, b.ID, p.ApplyID, true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return res
}
