package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/history"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/data/db"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/data/repos/state"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/modules/funnel"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

type StorageBootstrapErrorCode string

const (
	StorageBootstrapErrorConnectFailed StorageBootstrapErrorCode = "connect_failed"
	StorageBootstrapErrorMigrateFailed StorageBootstrapErrorCode = "migrate_failed"
	StorageBootstrapErrorRedisDown     StorageBootstrapErrorCode = "redis_unreachable"
)

type StorageBootstrapError struct {
	Code   StorageBootstrapErrorCode
	Driver string
	Cause  error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "storage bootstrap failed"
	}
	return fmt.Sprintf("storage bootstrap failed (code=%s driver=%q): %v", e.Code, e.Driver, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Storage is the state store plus the conversation log.
type Storage struct {
	DB      *db.Service
	Redis   goredis.UniversalClient
	States  state.UserStateRepo
	History funnel.ConversationLog
}

func wireStorage(ctx context.Context, log *logger.Logger, cfg *config.Config, migrate bool) (Storage, error) {
	log.Info("Wiring storage...", "driver", cfg.Storage.Driver)
	var out Storage

	if cfg.Storage.Driver == "memory" {
		out.States = state.NewMemoryRepo()
	} else {
		svc, err := db.Open(cfg.Storage, log)
		if err != nil {
			return Storage{}, &StorageBootstrapError{Code: StorageBootstrapErrorConnectFailed, Driver: cfg.Storage.Driver, Cause: err}
		}
		if migrate {
			if err := db.AutoMigrateAll(svc.DB()); err != nil {
				_ = svc.Close()
				return Storage{}, &StorageBootstrapError{Code: StorageBootstrapErrorMigrateFailed, Driver: cfg.Storage.Driver, Cause: err}
			}
		}
		out.DB = svc
		out.States = state.NewUserStateRepo(svc.DB(), log)
	}

	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		log.Warn("Redis not configured; conversation log kept in memory")
		out.History = history.NewMemory(cfg.Redis.HistoryLimit)
		return out, nil
	}
	rdb := history.NewClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		out.close(log)
		return Storage{}, &StorageBootstrapError{Code: StorageBootstrapErrorRedisDown, Driver: "redis", Cause: err}
	}
	out.Redis = rdb
	out.History = history.NewStore(rdb, cfg.Redis, log)
	return out, nil
}

func (s Storage) close(log *logger.Logger) {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("Storage close failed", "error", err)
	}
}
