package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSanitizeKVs(t *testing.T) {
	out := (&Logger{}).sanitize([]interface{}{
		"webhook_secret", "s3cret",
		"chat_id", int64(555),
		"raw", "123456789:AAFakeFakeFakeFakeFakeFakeFake",
		"offer", map[string]interface{}{"phone": "+79990001122", "square": 100},
		"persona", "listing_search",
		"dangling",
	})
	got := map[string]interface{}{}
	for i := 0; i+1 < len(out); i += 2 {
		got[out[i].(string)] = out[i+1]
	}

	if got["webhook_secret"] != "[REDACTED]" {
		t.Fatalf("secret=%v", got["webhook_secret"])
	}
	if s, _ := got["chat_id"].(string); !strings.HasPrefix(s, "hash:") || len(s) != len("hash:")+12 {
		t.Fatalf("chat_id=%v", got["chat_id"])
	}
	if got["raw"] != "[REDACTED]" {
		t.Fatalf("bot token logged: %v", got["raw"])
	}
	if got["persona"] != "listing_search" {
		t.Fatalf("persona=%v", got["persona"])
	}
	offer := got["offer"].(map[string]interface{})
	if offer["phone"] != "[REDACTED]" || offer["square"] != 100 {
		t.Fatalf("offer=%v", offer)
	}
	if out[len(out)-1] != "dangling" {
		t.Fatalf("dangling key dropped: %v", out)
	}
}

func TestLooksLikeBotToken(t *testing.T) {
	cases := map[string]bool{
		"123456789:AAFakeFakeFakeFakeFakeFakeFake": true,
		"12:AA":                                    false,
		"abc:AAFakeFakeFakeFakeFakeFakeFake":       false,
		"plain text":                               false,
	}
	for in, want := range cases {
		if got := looksLikeBotToken(in); got != want {
			t.Fatalf("looksLikeBotToken(%q)=%v", in, got)
		}
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"nop", "development", "production"} {
		log, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		log.With("component", "test").Debug("hello", "chat_id", 1)
	}
}

func TestHashSalt(t *testing.T) {
	plain := (&Logger{}).hash(int64(555))
	salted := (&Logger{salt: "pepper"}).hash(int64(555))
	if plain == salted {
		t.Fatalf("salt ignored: %s", plain)
	}
	nop := &Logger{SugaredLogger: zap.NewNop().Sugar(), salt: "pepper"}
	if got := nop.With("chat_id", 1).salt; got != "pepper" {
		t.Fatalf("With dropped salt: %q", got)
	}
	if got := (&Logger{}).hash(nil); got != "" {
		t.Fatalf("hash(nil)=%q", got)
	}
}
