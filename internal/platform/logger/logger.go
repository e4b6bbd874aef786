package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

const redacted = "[REDACTED]"

// Keys whose values never reach the log. Matching is by substring of the lowercased key.
var redactKeys = []string{"token", "authorization", "password", "secret", "api_key", "apikey", "email", "phone"}

// Keys whose values are logged as a short salted hash so a chat can be followed across
// lines without exposing who it belongs to.
var hashKeys = []string{"user_id", "chat_id", "username"}

// Logger is the sugared zap logger used across the bot. Every key-value pair passes through
// the redaction rules above.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	salt          string
}

// New builds a logger for mode: "production" (JSON, info), "nop", or anything else for
// development output at debug level. LOG_HASH_SALT salts identifier hashes.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "nop":
		return &Logger{SugaredLogger: zap.NewNop().Sugar()}, nil
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zl.Sugar(), salt: strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))}, nil
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.SugaredLogger.Debugw(msg, l.sanitize(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.SugaredLogger.Infow(msg, l.sanitize(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.SugaredLogger.Warnw(msg, l.sanitize(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.SugaredLogger.Errorw(msg, l.sanitize(kv)...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.sanitize(kv)...), salt: l.salt}
}

func (l *Logger) sanitize(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := toString(kv[i])
		out = append(out, key, l.value(strings.ToLower(key), kv[i+1]))
	}
	return out
}

func (l *Logger) value(key string, val interface{}) interface{} {
	switch {
	case containsAny(key, redactKeys):
		return redacted
	case containsAny(key, hashKeys):
		return l.hash(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = l.value(strings.ToLower(k), inner)
		}
		return out
	case string:
		if looksLikeBotToken(v) {
			return redacted
		}
	}
	return val
}

func (l *Logger) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(l.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func containsAny(key string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

// looksLikeBotToken matches Telegram bot tokens ("123456:AA...") that leak into URLs and errors.
func looksLikeBotToken(s string) bool {
	idx := strings.Index(s, ":AA")
	if idx <= 0 || len(s) < idx+30 {
		return false
	}
	for _, r := range s[:idx] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
