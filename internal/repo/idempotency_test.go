package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-im-core/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetIdempotency_EmptyKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	rec, err := GetIdempotency(context.Background(), db, 1, "contact_apply", "   ", time.Now())
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for empty key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:        "expired",
		UserID:    1,
		Scope:     "contact_apply",
		Key:       "k1",
		Status:    201,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, 1, "contact_apply", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	rec, err = GetIdempotency(context.Background(), db, 1, "contact_apply", "missing", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec, err)
	}
}

func TestCreateIdempotency_SuccessDuplicateAndLookup(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, 9, "contact_apply", "k9", 77, 201, 90*time.Minute)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.ResourceID != 77 || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	// loose bound to avoid timing flakes
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	if _, err := CreateIdempotency(ctx, db, 9, "contact_apply", "k9", 78, 201, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetIdempotency(ctx, db, 9, "contact_apply", "k9", time.Now())
	if err != nil || got.ResourceID != 77 {
		t.Fatalf("lookup: got %+v err=%v", got, err)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t) // intentionally NOT migrating
	_, err := CreateIdempotency(context.Background(), db, 1, "s", "k", 1, 200, time.Minute)
	if err == nil || err == ErrDuplicate {
		t.Fatalf("expected a non-duplicate error when the table is missing, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, 1, "s", "old", 1, 201, -time.Minute); err != nil {
		t.Fatalf("seed old: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, 1, "s", "fresh", 2, 201, time.Hour); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}

func TestIdempotencyStore_LookupRecordExists(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	s := IdempotencyStore{DB: db, TTL: time.Hour}

	rec, err := s.Lookup(ctx, 1, "contact_apply", "k", time.Now().UTC())
	if rec != nil || err != nil {
		t.Fatalf("expected (nil, nil) when absent, got (%v, %v)", rec, err)
	}
	if err := s.Record(ctx, 1, "contact_apply", "k", 42, 201); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// duplicate keeps the first outcome
	if err := s.Record(ctx, 1, "contact_apply", "k", 43, 201); err != nil {
		t.Fatalf("Record duplicate: %v", err)
	}
	rec, err = s.Lookup(ctx, 1, "contact_apply", "k", time.Now().UTC())
	if err != nil || rec == nil || rec.ResourceID != 42 {
		t.Fatalf("unexpected lookup: (%+v, %v)", rec, err)
	}
	ok, err := s.Exists(ctx, 2, "contact_apply", "k", time.Now().UTC())
	if err != nil || ok {
		t.Fatalf("other users must not see the record: (%v, %v)", ok, err)
	}
}
