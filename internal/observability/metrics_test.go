package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Second)
	m.TrackUpdate("message")("ok")
	m.ObserveLLMRequest("gpt", "ok", time.Second, 1, 1)
	m.IncHandoff()
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil || buf.Len() != 0 {
		t.Fatalf("nil metrics wrote %q err=%v", buf.String(), err)
	}
}

func TestWritePrometheus(t *testing.T) {
	m := New()
	done := m.TrackUpdate("message")
	if got := m.updatesInflight.Value(); got != 1 {
		t.Fatalf("inflight=%v, want 1", got)
	}
	done("ok")
	if got := m.updatesInflight.Value(); got != 0 {
		t.Fatalf("inflight=%v, want 0", got)
	}
	m.IncPersonaTransition("wewall_intro", "listing_search")
	m.IncEscalation("messages_seen", "high_engagement")
	m.ObserveCall("crm", "edit_lead", "ok", 20*time.Millisecond)
	m.ObserveLLMRequest("gpt-4o", "ok", time.Second, 10, 5)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`wewall_updates_total{kind="message",outcome="ok"} 1`,
		`wewall_persona_transitions_total{from="wewall_intro",to="listing_search"} 1`,
		`wewall_engagement_escalations_total{counter="messages_seen",level="high_engagement"} 1`,
		`wewall_collaborator_call_duration_seconds_bucket{service="crm",op="edit_lead",le="0.025"} 1`,
		`wewall_llm_tokens_total{model="gpt-4o",direction="input"} 10`,
		"# TYPE wewall_updates_inflight gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLabelString(t *testing.T) {
	cases := []struct {
		names  []string
		values []string
		want   string
	}{
		{nil, nil, ""},
		{[]string{"a"}, nil, `{a="unknown"}`},
		{[]string{"a", "b"}, []string{"x\"y", "z"}, `{a="x\"y",b="z"}`},
	}
	for _, tc := range cases {
		if got := labelString(tc.names, tc.values); got != tc.want {
			t.Fatalf("labelString(%v,%v)=%q, want %q", tc.names, tc.values, got, tc.want)
		}
	}
}
