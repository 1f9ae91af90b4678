package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's metric set, registered against one collector
type Metrics struct {
	// Recording
	ActionsRecorded    *prometheus.CounterVec // by action kind
	StoreWriteFailures prometheus.Counter
	SessionsRecorded   prometheus.Counter

	// Replay
	ReplaysStarted   prometheus.Counter
	ReplaysCompleted prometheus.Counter
	ReplaysFailed    prometheus.Counter
	ActionRetries    prometheus.Counter
	ChallengePauses  prometheus.Counter
	ActionDuration   *prometheus.HistogramVec // by action kind

	// Signals
	SignalsEmitted *prometheus.CounterVec // by severity
}

// New registers the engine metric set with a collector
func New(c *Collector) *Metrics {
	return &Metrics{
		ActionsRecorded: c.RegisterCounter(
			"formpilot_actions_recorded_total",
			"Actions captured and persisted during recording",
			[]string{"kind"},
		),
		StoreWriteFailures: counter(c,
			"formpilot_store_write_failures_total",
			"Action writes dropped by the session store",
		),
		SessionsRecorded: counter(c,
			"formpilot_sessions_recorded_total",
			"Recording sessions completed",
		),
		ReplaysStarted: counter(c,
			"formpilot_replays_started_total",
			"Replay runs started",
		),
		ReplaysCompleted: counter(c,
			"formpilot_replays_completed_total",
			"Replay runs that executed the full filtered action list",
		),
		ReplaysFailed: counter(c,
			"formpilot_replays_failed_total",
			"Replay runs ended by retry-budget exhaustion",
		),
		ActionRetries: counter(c,
			"formpilot_action_retries_total",
			"Single-action retries during replay",
		),
		ChallengePauses: counter(c,
			"formpilot_challenge_pauses_total",
			"Replay pauses caused by a visible challenge indicator",
		),
		ActionDuration: c.RegisterHistogram(
			"formpilot_action_duration_seconds",
			"Time spent synthesizing one action during replay",
			[]string{"kind"},
			nil,
		),
		SignalsEmitted: c.RegisterCounter(
			"formpilot_signals_emitted_total",
			"User signals emitted",
			[]string{"severity"},
		),
	}
}

func counter(c *Collector, name, help string) prometheus.Counter {
	return c.RegisterCounter(name, help, nil).WithLabelValues()
}
