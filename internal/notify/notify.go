package notify

import (
	"github.com/rs/zerolog"

	"github.com/formpilot/engine/internal/logger"
	"github.com/formpilot/engine/internal/metrics"
)

// Severity classifies a user signal
type Severity string

const (
	// SeverityInfo is routine progress feedback
	SeverityInfo Severity = "info"
	// SeverityWarning is a recoverable anomaly
	SeverityWarning Severity = "warning"
	// SeverityError is a surfaced failure
	SeverityError Severity = "error"
	// SeverityPause asks the user to intervene manually; it is
	// acknowledged by the caller resuming the replay
	SeverityPause Severity = "pause"
)

// Signaler delivers fire-and-forget progress and error messages to the
// user. No acknowledgement is required except for the pause signal, which
// is resolved by the external caller invoking Resume on the replay engine.
type Signaler interface {
	Notify(message string, severity Severity, context map[string]string)
}

// LogSignaler writes signals to the engine log and counts them
type LogSignaler struct {
	log zerolog.Logger
	met *metrics.Metrics
}

// NewLogSignaler creates a log-backed signaler
func NewLogSignaler(met *metrics.Metrics) *LogSignaler {
	return &LogSignaler{
		log: logger.WithComponent("signal"),
		met: met,
	}
}

// Notify implements Signaler
func (s *LogSignaler) Notify(message string, severity Severity, context map[string]string) {
	var ev *zerolog.Event
	switch severity {
	case SeverityError:
		ev = s.log.Error()
	case SeverityWarning, SeverityPause:
		ev = s.log.Warn()
	default:
		ev = s.log.Info()
	}
	for k, v := range context {
		ev = ev.Str(k, v)
	}
	ev.Str("severity", string(severity)).Msg(message)

	if s.met != nil {
		s.met.SignalsEmitted.WithLabelValues(string(severity)).Inc()
	}
}

// multi fans a signal out to several signalers
type multi []Signaler

// Multi combines signalers; every signal reaches each of them
func Multi(signalers ...Signaler) Signaler {
	return multi(signalers)
}

func (m multi) Notify(message string, severity Severity, context map[string]string) {
	for _, s := range m {
		s.Notify(message, severity, context)
	}
}
