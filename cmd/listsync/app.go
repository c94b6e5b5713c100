package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/listsync/internal/config"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/pkg/distlock"
	"github.com/ignite/listsync/internal/pkg/logger"
	"github.com/ignite/listsync/internal/repository/memory"
	"github.com/ignite/listsync/internal/repository/postgres"
	"github.com/ignite/listsync/internal/service/listsync"
)

// app holds the collaborators shared by the subcommands.
type app struct {
	cfg    *config.Config
	db     *sql.DB
	redis  *redis.Client
	client *mailchimp.Client
}

func loadApp() (*app, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.ShouldRedact())

	if cfg.Mailchimp.APIKey == "" {
		return nil, fmt.Errorf("mailchimp api key is required (MAILCHIMP_API_KEY)")
	}
	client := mailchimp.NewClient(mailchimp.Config{
		APIKey:          cfg.Mailchimp.APIKey,
		BaseURL:         cfg.Mailchimp.ResolvedBaseURL(),
		Timeout:         cfg.Mailchimp.Timeout(),
		MaxRetries:      cfg.Mailchimp.MaxRetries,
		PollInterval:    cfg.Sync.PollInterval(),
		MaxWait:         cfg.Sync.MaxWait(),
		SerialThreshold: cfg.Sync.SerialThreshold,
	})
	return &app{cfg: cfg, client: client}, nil
}

// connect opens Postgres and, when configured, Redis.
func (a *app) connect(ctx context.Context) error {
	if a.cfg.Database.URL == "" {
		return fmt.Errorf("database url is required (DATABASE_URL)")
	}
	db, err := sql.Open("postgres", a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(a.cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(a.cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	a.db = db
	log.Println("Connected to database")

	if a.cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		log.Println("Connected to Redis")
	}
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

type serviceFlags struct {
	dryRun        bool
	keepStaging   bool
	memoryStaging bool
}

// service builds the sync engine on the Postgres repositories. Staging can
// be kept in process memory instead of per-list tables.
func (a *app) service(f serviceFlags) *listsync.Service {
	var store listsync.StagingStore = postgres.NewStagingRepo(a.db)
	if f.memoryStaging {
		store = memory.NewStagingStore()
	}
	ttl := a.cfg.Sync.LockTTL()
	return listsync.NewService(
		postgres.NewCRMRepo(a.db),
		store,
		postgres.NewQuarantineRepo(a.db),
		a.client,
		listsync.Options{
			PageSize:     a.cfg.Sync.PageSize,
			MaxBatchSize: a.cfg.Sync.MaxBatchSize,
			DryRun:       a.cfg.Sync.DryRun || f.dryRun,
			Actor:        a.cfg.Sync.Actor,
			KeepStaging:  a.cfg.Sync.KeepStaging || f.keepStaging,
			Lock: func(listID string) distlock.DistLock {
				return distlock.NewLock(a.redis, a.db, distlock.ListKey(listID), ttl)
			},
			LockTTL: ttl,
		},
	)
}
