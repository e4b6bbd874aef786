package funnel

import (
	"context"
	"fmt"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

const (
	levelHighEngagement = "high_engagement"
	levelActiveUser     = "active_user"
)

// Engagement escalates the CRM lead when a counter lands exactly on a threshold.
// Counters only ever move by one, so equality sees every crossing.
type Engagement struct {
	crm        CRM
	pipelines  config.CRMPipelines
	statuses   config.CRMStatuses
	thresholds config.EngagementConfig
	log        *logger.Logger
}

func (e *Engagement) thresholdsFor(c dialog.Counter) (high, active uint32, ok bool) {
	t := e.thresholds
	switch c {
	case dialog.CounterMessages:
		return t.MessagesHighEngagement, t.MessagesActiveUser, true
	case dialog.CounterSearch:
		return t.SearchHighEngagement, t.SearchActiveUser, true
	case dialog.CounterCalculator:
		return t.CalculatorHighEngagement, t.CalculatorActiveUser, true
	default:
		return 0, 0, false
	}
}

// Level returns the escalation level snap triggers, "" when none.
func (e *Engagement) Level(snap dialog.CounterSnapshot) string {
	if snap.Transferred {
		return ""
	}
	high, active, ok := e.thresholdsFor(snap.Counter)
	if !ok {
		return ""
	}
	switch snap.Value {
	case high:
		return levelHighEngagement
	case active:
		return levelActiveUser
	default:
		return ""
	}
}

// Observe issues at most one EditLead for a post-increment snapshot.
func (e *Engagement) Observe(ctx context.Context, chatID int64, snap dialog.CounterSnapshot) error {
	level := e.Level(snap)
	if level == "" {
		return nil
	}
	status := e.statuses.HighEngagement
	if level == levelActiveUser {
		status = e.statuses.ActiveUser
	}
	if err := e.crm.EditLead(ctx, chatID, e.pipelines.Main, status); err != nil {
		return fmt.Errorf("engagement escalation %s=%d: %w", snap.Counter, snap.Value, err)
	}
	observability.Current().IncEscalation(string(snap.Counter), level)
	e.log.Info("Lead escalated", "chat_id", chatID, "counter", snap.Counter, "value", snap.Value, "level", level)
	return nil
}
