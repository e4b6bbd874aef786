package prompts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/yaml.v3"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Keys every prompts file must define.
var RequiredKeys = []string{"intro", "market", "search", "calc", "contact", "offer_description", "chat_summary"}

const cacheSize = 64

// Service serves system prompts from a YAML file of key -> text. Prompts are cached for
// the configured TTL and the cache is dropped whenever the file changes on disk.
type Service struct {
	path  string
	cache *expirable.LRU[string, string]
	log   *logger.Logger
}

func New(cfg config.PromptsConfig, log *logger.Logger) (*Service, error) {
	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &Service{
		path:  cfg.Path,
		cache: expirable.NewLRU[string, string](cacheSize, nil, ttl),
		log:   log.With("service", "PromptService"),
	}
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, key := range RequiredKeys {
		if strings.TrimSpace(all[key]) == "" {
			return nil, fmt.Errorf("prompts %s: missing key %q", s.path, key)
		}
	}
	return s, nil
}

func (s *Service) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", s.path, err)
	}
	var all map[string]string
	if err := yaml.Unmarshal(b, &all); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", s.path, err)
	}
	for k, v := range all {
		s.cache.Add(k, strings.TrimSpace(v))
	}
	return all, nil
}

// Get returns the prompt for key, reloading the file on a cache miss.
func (s *Service) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	all, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := all[key]
	if !ok {
		return "", apperr.Wrap(apperr.ErrNotFound, "prompt "+key, nil)
	}
	return strings.TrimSpace(v), nil
}

// Watch purges the cache on every change of the prompts file until ctx is done.
// The directory is watched so editors that replace the file atomically are seen.
func (s *Service) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("prompts watcher: %w", err)
	}
	defer w.Close()
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("prompts watch %s: %w", dir, err)
	}
	name := filepath.Clean(s.path)
	s.log.Info("watching prompts", "path", name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.cache.Purge()
			s.log.Info("prompts changed, cache purged", "op", ev.Op.String())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("prompts watcher error", "error", err)
		}
	}
}
