package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics is the bot's metric set. All methods are safe on a nil receiver, which is
// what callers hold when metrics are disabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec

	updates         *CounterVec
	updateLatency   *HistogramVec
	updatesInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	collaboratorCalls   *CounterVec
	collaboratorLatency *HistogramVec

	personaTransitions *CounterVec
	escalations        *CounterVec
	handoffs           *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide metrics, nil until Init ran with metrics enabled.
func Current() *Metrics {
	return instance
}

// Init builds the process-wide metric set; nil when disabled.
func Init(log *logger.Logger, cfg config.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled", "path", cfg.Path)
		}
	})
	return instance
}

func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("wewall_http_requests_total", "HTTP requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("wewall_http_request_duration_seconds", "HTTP request latency in seconds.", []string{"method", "route"}, latencyBuckets),

		updates:         NewCounterVec("wewall_updates_total", "Telegram updates processed by kind/outcome.", []string{"kind", "outcome"}),
		updateLatency:   NewHistogramVec("wewall_update_duration_seconds", "End-to-end update handling latency.", []string{"kind"}, latencyBuckets),
		updatesInflight: NewGauge("wewall_updates_inflight", "Updates currently being handled."),

		llmRequests: NewCounterVec("wewall_llm_requests_total", "LLM completions by model/status.", []string{"model", "status"}),
		llmLatency:  NewHistogramVec("wewall_llm_request_duration_seconds", "LLM completion latency.", []string{"model"}, latencyBuckets),
		llmTokens:   NewCounterVec("wewall_llm_tokens_total", "LLM tokens by model/direction.", []string{"model", "direction"}),

		collaboratorCalls:   NewCounterVec("wewall_collaborator_calls_total", "Outbound collaborator calls by service/op/status.", []string{"service", "op", "status"}),
		collaboratorLatency: NewHistogramVec("wewall_collaborator_call_duration_seconds", "Outbound collaborator call latency.", []string{"service", "op"}, latencyBuckets),

		personaTransitions: NewCounterVec("wewall_persona_transitions_total", "Persona switches by from/to.", []string{"from", "to"}),
		escalations:        NewCounterVec("wewall_engagement_escalations_total", "CRM lead escalations by counter/level.", []string{"counter", "level"}),
		handoffs:           NewCounterVec("wewall_manager_handoffs_total", "Chats handed to a human manager.", nil),

		pgStats:   NewGaugeVec("wewall_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp:   NewGauge("wewall_redis_up", "1 when the last redis ping succeeded."),
		redisPing: NewGauge("wewall_redis_ping_seconds", "Last redis ping latency."),

		scrapeInterval: 15 * time.Second,
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, pw := range []promWriter{
		m.apiRequests, m.apiLatency,
		m.updates, m.updateLatency, m.updatesInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.collaboratorCalls, m.collaboratorLatency,
		m.personaTransitions, m.escalations, m.handoffs,
		m.pgStats, m.redisUp, m.redisPing,
	} {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

// TrackUpdate marks an update in flight; the returned func records its outcome.
func (m *Metrics) TrackUpdate(kind string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.updatesInflight.Add(1)
	return func(outcome string) {
		m.updatesInflight.Add(-1)
		m.updates.Inc(kind, outcome)
		m.updateLatency.Observe(time.Since(start).Seconds(), kind)
	}
}

// UpdatesTotal reads the processed-updates counter.
func (m *Metrics) UpdatesTotal(kind, outcome string) float64 {
	if m == nil {
		return 0
	}
	return m.updates.Value(kind, outcome)
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	m.llmRequests.Inc(model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

// ObserveCall records one outbound call; status is "ok" or an error kind.
func (m *Metrics) ObserveCall(service, op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.collaboratorCalls.Inc(service, op, status)
	m.collaboratorLatency.Observe(dur.Seconds(), service, op)
}

func (m *Metrics) IncPersonaTransition(from, to string) {
	if m == nil {
		return
	}
	m.personaTransitions.Inc(from, to)
}

func (m *Metrics) IncEscalation(counter, level string) {
	if m == nil {
		return
	}
	m.escalations.Inc(counter, level)
}

func (m *Metrics) IncHandoff() {
	if m == nil {
		return
	}
	m.handoffs.Inc()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

// StartRedisCollector pings through the shared client; it never closes it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// StatusLabel maps an HTTP status code to a label value.
func StatusLabel(code int) string {
	if code <= 0 {
		return "0"
	}
	return strconv.Itoa(code)
}
