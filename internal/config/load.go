package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/envutil"
)

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if dd, err := time.ParseDuration(s); err == nil {
		d.Duration = dd
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an int number of seconds: %q", s)
	}
	d.Duration = time.Duration(n) * time.Second
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func defaultConfig() *Config {
	return &Config{
		Env:     "development",
		Version: "dev",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			WebhookPath:       "/telegram/webhook",
		},
		Telegram: TelegramConfig{
			BaseURL:     "https://api.telegram.org",
			Mode:        "webhook",
			PollTimeout: Duration{Duration: 30 * time.Second},
			Timeout:     Duration{Duration: 10 * time.Second},
			Workers:     32,

			UpdateTimeout: Duration{Duration: 3 * time.Minute},
		},
		Storage: StorageConfig{Driver: "postgres"},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			KeyPrefix:    "wewall:conv",
			HistoryTTL:   Duration{Duration: 72 * time.Hour},
			HistoryLimit: 60,
		},
		LLM: LLMConfig{
			DefaultModel:     "gpt-4o-mini",
			HighQualityModel: "gpt-4o",
			Timeout:          Duration{Duration: 30 * time.Second},
		},
		CRM: CRMConfig{
			Timeout: Duration{Duration: 5 * time.Second},
		},
		Services: ServicesConfig{
			Listing:    ServiceEndpoint{Timeout: Duration{Duration: 10 * time.Second}},
			Calculator: ServiceEndpoint{Timeout: Duration{Duration: 20 * time.Second}},
			Report:     ServiceEndpoint{Timeout: Duration{Duration: 20 * time.Second}},
		},
		Prompts: PromptsConfig{
			Path:     "config/prompts.yaml",
			CacheTTL: Duration{Duration: 5 * time.Minute},
			Watch:    true,
		},
		Engagement: EngagementConfig{
			MessagesHighEngagement:   20,
			MessagesActiveUser:       60,
			SearchHighEngagement:     2,
			SearchActiveUser:         7,
			CalculatorHighEngagement: 2,
			CalculatorActiveUser:     7,
		},
		OTel: OTelConfig{
			ServiceName: "wewall-bot",
			SampleRatio: 0.1,
		},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load resolves configuration from defaults, an optional YAML file and the environment.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfgPath := strings.TrimSpace(os.Getenv("BOT_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	return LoadFile(cfgPath)
}

// LoadFile is Load without .env handling; an empty path skips the file layer.
func LoadFile(cfgPath string) (*Config, error) {
	cfg := defaultConfig()

	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.Version = envutil.String("BOT_VERSION", cfg.Version)

	cfg.HTTP.Addr = envutil.String("BOT_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.WebhookSecret = envutil.String("TELEGRAM_WEBHOOK_SECRET", cfg.HTTP.WebhookSecret)

	cfg.Telegram.Token = envutil.String("TELEGRAM_BOT_TOKEN", cfg.Telegram.Token)
	cfg.Telegram.Mode = envutil.String("TELEGRAM_MODE", cfg.Telegram.Mode)
	cfg.Telegram.WebhookURL = envutil.String("TELEGRAM_WEBHOOK_URL", cfg.Telegram.WebhookURL)
	cfg.Telegram.ChannelID = envutil.String("TELEGRAM_CHANNEL_ID", cfg.Telegram.ChannelID)
	cfg.Telegram.Workers = envutil.Int("TELEGRAM_WORKERS", cfg.Telegram.Workers)

	cfg.Storage.Driver = envutil.String("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = envutil.String("DATABASE_DSN", cfg.Storage.DSN)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.LLM.APIKey = envutil.String("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Timeout.Duration = envutil.Duration("LLM_TIMEOUT", cfg.LLM.Timeout.Duration)

	cfg.CRM.BaseURL = envutil.String("CRM_BASE_URL", cfg.CRM.BaseURL)
	cfg.CRM.Token = envutil.String("CRM_TOKEN", cfg.CRM.Token)
	cfg.CRM.Timeout.Duration = envutil.Duration("CRM_TIMEOUT", cfg.CRM.Timeout.Duration)

	cfg.Services.Listing.BaseURL = envutil.String("LISTING_SERVICE_URL", cfg.Services.Listing.BaseURL)
	cfg.Services.Calculator.BaseURL = envutil.String("CALCULATOR_SERVICE_URL", cfg.Services.Calculator.BaseURL)
	cfg.Services.Report.BaseURL = envutil.String("REPORT_SERVICE_URL", cfg.Services.Report.BaseURL)

	cfg.Prompts.Path = envutil.String("PROMPTS_PATH", cfg.Prompts.Path)

	cfg.OTel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.OTel.Enabled)
	cfg.OTel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTel.Insecure)
	cfg.OTel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.OTel.SampleRatio)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
}

func validate(cfg *Config) error {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Telegram.Workers <= 0 {
		cfg.Telegram.Workers = 1
	}
	cfg.Telegram.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Telegram.BaseURL), "/")

	cfg.Telegram.Mode = strings.ToLower(strings.TrimSpace(cfg.Telegram.Mode))
	switch cfg.Telegram.Mode {
	case "webhook", "polling":
	default:
		return fmt.Errorf("invalid telegram.mode=%q", cfg.Telegram.Mode)
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch cfg.Storage.Driver {
	case "postgres", "sqlite":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", cfg.Storage.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage.driver=%q", cfg.Storage.Driver)
	}

	if cfg.LLM.Timeout.Duration <= 0 {
		return errors.New("llm.timeout must be positive")
	}
	if cfg.CRM.Timeout.Duration <= 0 {
		return errors.New("crm.timeout must be positive")
	}
	for key, t := range cfg.LLM.Temperatures {
		if t < 0 || t > 2 {
			return fmt.Errorf("llm.temperatures[%s]=%v out of range [0,2]", key, t)
		}
	}

	e := cfg.Engagement
	if e.MessagesHighEngagement >= e.MessagesActiveUser ||
		e.SearchHighEngagement >= e.SearchActiveUser ||
		e.CalculatorHighEngagement >= e.CalculatorActiveUser {
		return errors.New("engagement: high_engagement threshold must be below active_user threshold")
	}

	if cfg.OTel.SampleRatio < 0 {
		cfg.OTel.SampleRatio = 0
	}
	if cfg.OTel.SampleRatio > 1 {
		cfg.OTel.SampleRatio = 1
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}
