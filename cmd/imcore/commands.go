package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-im-core/docs"
	"github.com/tbourn/go-im-core/internal/auth"
	"github.com/tbourn/go-im-core/internal/cache"
	"github.com/tbourn/go-im-core/internal/config"
	httpapi "github.com/tbourn/go-im-core/internal/http"
	"github.com/tbourn/go-im-core/internal/idgen"
	"github.com/tbourn/go-im-core/internal/lock"
	"github.com/tbourn/go-im-core/internal/observability"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/services"
	"github.com/tbourn/go-im-core/internal/sysutil"
	"github.com/tbourn/go-im-core/internal/txn"
	"github.com/tbourn/go-im-core/internal/ws"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

// bootstrap loads the configuration and builds the root logger.
func bootstrap() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("config: %w", err)
	}
	log := sysutil.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	return cfg, log, nil
}

// openDB opens the database and brings the schema up to date.
func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return nil, fmt.Errorf("db tracing: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

type serveCmd struct{}

func (serveCmd) Run() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Options{
		Version:    version,
		InstanceID: fmt.Sprintf("shard-%d", cfg.SnowflakeShard),
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}

	ids, err := idgen.New(cfg.SnowflakeShard)
	if err != nil {
		return err
	}
	hub := ws.NewHub(ids, log)

	caches, err := services.NewCaches(cache.NewRedisStore(rdb), services.CacheConfig{
		UserTTL:     cfg.Cache.UserTTL,
		ContactsTTL: cfg.Cache.ContactsTTL,
		AppliesTTL:  cfg.Cache.AppliesTTL,
		Jitter:      cfg.Cache.Jitter,
		NegativeTTL: cfg.Cache.NegativeTTL,
	}, log)
	if err != nil {
		return err
	}

	deps := services.Deps{
		Repo:           repo.Gorm{DB: db},
		UoW:            txn.New(db, log),
		Locker:         lock.NewRedisLocker(rdb, log, lock.WithRetryInterval(cfg.Lock.RetryInterval)),
		Caches:         caches,
		Notifier:       ws.Notifier{Hub: hub},
		Log:            log,
		LockLease:      cfg.Lock.Lease,
		PairWait:       cfg.Lock.PairWait,
		ApplyListLimit: cfg.ApplyListLimit,
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Applies:     services.NewApplyService(deps),
		Contacts:    services.NewContactService(deps),
		Users:       services.NewUserService(deps),
		Idempotency: repo.IdempotencyStore{DB: db, TTL: cfg.IdempotencyTTL},
		Verifier:    auth.NewJWT(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL),
		Hub:         hub,
		Log:         log,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Int64("shard", cfg.SnowflakeShard).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := shutdownTracing(sctx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
	return nil
}

// purgeIdempotency drops expired Idempotency-Key records until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB, log zerolog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("idempotency records purged")
			}
		}
	}
}

type migrateCmd struct{}

func (migrateCmd) Run() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	if _, err := openDB(cfg); err != nil {
		return err
	}
	log.Info().Str("db", cfg.DBPath).Msg("schema up to date")
	return nil
}

type addUserCmd struct {
	Username string `required:"" help:"Unique login name."`
	Nickname string `help:"Display name; defaults to the username."`
	Avatar   string `help:"Avatar URL."`
}

func (c *addUserCmd) Run() error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	u := services.NewAccount(c.Username, c.Nickname, c.Avatar)
	if u.Username == "" {
		return errors.New("username must not be blank")
	}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		return fmt.Errorf("create %q: %w", u.Username, err)
	}
	fmt.Println(u.ID)
	return nil
}

type tokenCmd struct {
	UserID int64         `required:"" name:"user-id" help:"User the token is issued to."`
	TTL    time.Duration `name:"ttl" help:"Token lifetime; defaults to JWT_TTL."`
}

func (c *tokenCmd) Run() error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	ttl := cfg.JWT.TTL
	if c.TTL > 0 {
		ttl = c.TTL
	}
	tok, err := auth.NewJWT(cfg.JWT.Secret, cfg.JWT.Issuer, ttl).Sign(c.UserID)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Println(version)
	return nil
}
