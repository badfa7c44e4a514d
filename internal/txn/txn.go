// Package txn provides a unit of work over GORM that can defer side effects
// until its transaction has committed.
//
// A transaction started by UnitOfWork.Do travels in the context. Code running
// inside it registers actions with AfterCommit; they run in registration
// order once the commit succeeded and are discarded on rollback. Outside a
// transaction AfterCommit runs the action immediately.
package txn

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var afterCommitFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "txn_after_commit_failures_total",
	Help: "After-commit actions that panicked.",
})

func init() {
	prometheus.MustRegister(afterCommitFailures)
}

type ctxKey struct{}

// Tx is the ambient transaction state.
type Tx struct {
	DB      *gorm.DB
	actions []func(ctx context.Context)
}

// UnitOfWork opens transactions on DB.
type UnitOfWork struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// New returns a UnitOfWork over db.
func New(db *gorm.DB, log zerolog.Logger) *UnitOfWork {
	return &UnitOfWork{DB: db, Log: log.With().Str("component", "txn").Logger()}
}

// Do runs fn in a transaction. fn receives a context carrying the transaction
// and the transaction handle itself. If a transaction is already ambient, fn
// joins it and the actions belong to the outer commit.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if outer := From(ctx); outer != nil {
		return fn(ctx, outer.DB)
	}

	t := &Tx{}
	txCtx := context.WithValue(ctx, ctxKey{}, t)
	err := u.DB.WithContext(txCtx).Transaction(func(db *gorm.DB) error {
		t.DB = db
		return fn(txCtx, db)
	})
	if err != nil {
		return err
	}

	// committed; actions see a context without the finished transaction
	u.drain(context.WithoutCancel(ctx), t.actions)
	return nil
}

// From returns the ambient transaction, or nil.
func From(ctx context.Context) *Tx {
	t, _ := ctx.Value(ctxKey{}).(*Tx)
	return t
}

// DB returns the ambient transaction handle, or fallback when none is active.
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if t := From(ctx); t != nil && t.DB != nil {
		return t.DB
	}
	return fallback.WithContext(ctx)
}

// AfterCommit defers action until the ambient transaction commits, or runs it
// now when there is none. A panicking immediate action is recovered too.
func AfterCommit(ctx context.Context, log zerolog.Logger, action func(ctx context.Context)) {
	if t := From(ctx); t != nil {
		t.actions = append(t.actions, action)
		return
	}
	runAction(ctx, log, action)
}

func (u *UnitOfWork) drain(ctx context.Context, actions []func(context.Context)) {
	for _, a := range actions {
		runAction(ctx, u.Log, a)
	}
}

func runAction(ctx context.Context, log zerolog.Logger, action func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			afterCommitFailures.Inc()
			log.Error().Str("panic", fmt.Sprint(r)).Msg("after-commit action failed")
		}
	}()
	action(ctx)
}
