package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	// WebhookPath is where Telegram posts updates in webhook mode.
	WebhookPath string `yaml:"webhook_path"`
	// WebhookSecret is compared with X-Telegram-Bot-Api-Secret-Token when set.
	WebhookSecret string `yaml:"webhook_secret"`
}

type TelegramConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	// Mode is "webhook" or "polling".
	Mode        string   `yaml:"mode"`
	PollTimeout Duration `yaml:"poll_timeout"`
	Timeout     Duration `yaml:"timeout"`
	// ChannelID gates the bot: users must be members of it. Empty disables the gate.
	ChannelID   string `yaml:"channel_id"`
	ChannelLink string `yaml:"channel_link"`
	// Workers bounds concurrently processed updates.
	Workers int `yaml:"workers"`
	// WebhookURL is registered with Telegram by serve in webhook mode when set.
	WebhookURL string `yaml:"webhook_url"`
	// UpdateTimeout caps the processing of one update.
	UpdateTimeout Duration `yaml:"update_timeout"`
}

type StorageConfig struct {
	// Driver is "postgres", "sqlite" or "memory".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	// HistoryTTL expires idle conversation logs.
	HistoryTTL Duration `yaml:"history_ttl"`
	// HistoryLimit caps the turns fed back to the model.
	HistoryLimit int `yaml:"history_limit"`
}

type LLMConfig struct {
	APIKey           string   `yaml:"api_key"`
	BaseURL          string   `yaml:"base_url"`
	DefaultModel     string   `yaml:"default_model"`
	HighQualityModel string   `yaml:"high_quality_model"`
	Timeout          Duration `yaml:"timeout"`
	// Temperatures overrides persona temperatures keyed by prompt key (intro, market, ...).
	Temperatures map[string]float64 `yaml:"temperatures"`
}

type CRMPipelines struct {
	Main   int64 `yaml:"main"`
	Appeal int64 `yaml:"appeal"`
}

type CRMStatuses struct {
	ChatWithManager int64 `yaml:"chat_with_manager"`
	HighEngagement  int64 `yaml:"high_engagement"`
	ActiveUser      int64 `yaml:"active_user"`
}

type CRMConfig struct {
	BaseURL   string       `yaml:"base_url"`
	Token     string       `yaml:"token"`
	Timeout   Duration     `yaml:"timeout"`
	Pipelines CRMPipelines `yaml:"pipelines"`
	Statuses  CRMStatuses  `yaml:"statuses"`
}

type ServiceEndpoint struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

type ServicesConfig struct {
	Listing    ServiceEndpoint `yaml:"listing"`
	Calculator ServiceEndpoint `yaml:"calculator"`
	Report     ServiceEndpoint `yaml:"report"`
	// ListingLinkBase prefixes estate ids in the internal listing link appended for managers.
	ListingLinkBase string `yaml:"listing_link_base"`
}

type PromptsConfig struct {
	Path     string   `yaml:"path"`
	CacheTTL Duration `yaml:"cache_ttl"`
	Watch    bool     `yaml:"watch"`
}

type EngagementConfig struct {
	MessagesHighEngagement   uint32 `yaml:"messages_high_engagement"`
	MessagesActiveUser       uint32 `yaml:"messages_active_user"`
	SearchHighEngagement     uint32 `yaml:"search_high_engagement"`
	SearchActiveUser         uint32 `yaml:"search_active_user"`
	CalculatorHighEngagement uint32 `yaml:"calculator_high_engagement"`
	CalculatorActiveUser     uint32 `yaml:"calculator_active_user"`
}

type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path on the main HTTP server.
	Path string `yaml:"path"`
}

type Config struct {
	Env        string           `yaml:"env"`
	Version    string           `yaml:"version"`
	HTTP       HTTPConfig       `yaml:"http"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	LLM        LLMConfig        `yaml:"llm"`
	CRM        CRMConfig        `yaml:"crm"`
	Services   ServicesConfig   `yaml:"services"`
	Prompts    PromptsConfig    `yaml:"prompts"`
	Engagement EngagementConfig `yaml:"engagement"`
	OTel       OTelConfig       `yaml:"otel"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}
