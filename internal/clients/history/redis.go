package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Store is the per-chat conversation log: one redis list per chat holding JSON turns,
// oldest first, expiring after the configured idle TTL.
type Store struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	limit  int
	log    *logger.Logger
}

func NewClient(cfg config.RedisConfig) goredis.UniversalClient {
	return goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
}

func NewStore(rdb goredis.UniversalClient, cfg config.RedisConfig, log *logger.Logger) *Store {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "wewall:conv"
	}
	return &Store{
		rdb:    rdb,
		prefix: prefix,
		ttl:    cfg.HistoryTTL.Duration,
		limit:  cfg.HistoryLimit,
		log:    log.With("client", "HistoryStore"),
	}
}

func (s *Store) key(chatID int64) string {
	return s.prefix + ":" + strconv.FormatInt(chatID, 10)
}

func (s *Store) Append(ctx context.Context, chatID int64, role dialog.Role, text string) error {
	raw, err := json.Marshal(dialog.Turn{Role: role, Text: text, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	key := s.key(chatID)
	_, err = s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, key, raw)
		if s.limit > 0 {
			// Retain twice the read window.
			p.LTrim(ctx, key, int64(-2*s.limit), -1)
		}
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrTransient, "history append", err)
	}
	return nil
}

// History returns the log oldest first, capped to the most recent limit turns.
func (s *Store) History(ctx context.Context, chatID int64) ([]dialog.Turn, error) {
	start := int64(0)
	if s.limit > 0 {
		start = int64(-s.limit)
	}
	items, err := s.rdb.LRange(ctx, s.key(chatID), start, -1).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrTransient, "history read", err)
	}
	out := make([]dialog.Turn, 0, len(items))
	for _, item := range items {
		var t dialog.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.log.Warn("skipping undecodable history turn", "chat_id", chatID, "error", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) DeleteAll(ctx context.Context, chatID int64) error {
	if err := s.rdb.Del(ctx, s.key(chatID)).Err(); err != nil {
		return apperr.Wrap(apperr.ErrTransient, "history delete", err)
	}
	return nil
}
