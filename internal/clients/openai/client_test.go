package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("nop")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestClient(t *testing.T, rt roundTripperFunc) *Client {
	t.Helper()
	c, err := New(config.LLMConfig{
		APIKey:           "sk-test",
		BaseURL:          "https://llm.local/v1/",
		DefaultModel:     "small",
		HighQualityModel: "large",
		Timeout:          config.Duration{Duration: time.Second},
	}, mustTestLogger(t), &http.Client{Transport: rt})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func completion(content string) *http.Response {
	body := `{"id":"c1","object":"chat.completion","created":1,"model":"large","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` +
		jsonString(content) + `}}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`
	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerateBuildsRequest(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Fatalf("path=%s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return completion("  Здравствуйте!  "), nil
	})

	text, err := c.Generate(context.Background(), Request{
		System:      "ты эксперт",
		History:     []dialog.Turn{{Role: dialog.RoleUser, Text: "привет"}, {Role: dialog.RoleAssistant, Text: "добрый день"}},
		Temperature: 0.1,
		Tier:        dialog.TierHigh,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Здравствуйте!" {
		t.Fatalf("text=%q", text)
	}
	if got.Model != "large" || got.Temperature != 0.1 {
		t.Fatalf("model=%q temperature=%v", got.Model, got.Temperature)
	}
	roles := make([]string, 0, len(got.Messages))
	for _, m := range got.Messages {
		roles = append(roles, m.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant" {
		t.Fatalf("roles=%v", roles)
	}
}

func TestGenerateDefaultTier(t *testing.T) {
	var model string
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		return completion("ok"), nil
	})
	if _, err := c.Generate(context.Background(), Request{Tier: dialog.TierDefault}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if model != "small" {
		t.Fatalf("model=%q, want small", model)
	}
}

func TestGenerateServerErrorIsTransient(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: 503,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"overloaded","type":"server_error"}}`)),
		}, nil
	})
	_, err := c.Generate(context.Background(), Request{})
	if !apperr.Is(err, apperr.ErrTransient) {
		t.Fatalf("err=%v, want transient", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want exactly one attempt", calls)
	}
}
