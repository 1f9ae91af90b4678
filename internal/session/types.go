package session

import (
	"net/url"
	"strings"
	"time"

	"github.com/formpilot/engine/internal/action"
)

// Status represents the lifecycle state of a session
type Status string

const (
	// StatusRecording indicates the session is actively capturing actions
	StatusRecording Status = "recording"
	// StatusCompleted indicates the recording was explicitly stopped
	StatusCompleted Status = "completed"
	// StatusFailed indicates an unrecoverable internal error
	StatusFailed Status = "failed"
	// StatusPaused indicates a transient manual-intervention wait
	StatusPaused Status = "paused"
)

// Platform is the coarse classification of the site a session was recorded
// against, fixed once derived from the start URL.
type Platform string

const (
	PlatformWorkday        Platform = "workday"
	PlatformTaleo          Platform = "taleo"
	PlatformGreenhouse     Platform = "greenhouse"
	PlatformSuccessFactors Platform = "successfactors"
	PlatformLever          Platform = "lever"
	PlatformICIMS          Platform = "icims"
	PlatformGeneric        Platform = "generic"
)

// Session is an ordered recording of one demonstration pass
type Session struct {
	ID        string          `json:"id"`
	StartURL  string          `json:"start_url"`
	Platform  Platform        `json:"platform"`
	Status    Status          `json:"status"`
	StartTime time.Time       `json:"start_time"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Actions   []action.Action `json:"actions,omitempty"`
}

// hostMarkers maps a host substring to its platform, checked in order
var hostMarkers = []struct {
	marker   string
	platform Platform
}{
	{"myworkdayjobs", PlatformWorkday},
	{"workday", PlatformWorkday},
	{"taleo", PlatformTaleo},
	{"greenhouse", PlatformGreenhouse},
	{"successfactors", PlatformSuccessFactors},
	{"lever.co", PlatformLever},
	{"icims", PlatformICIMS},
}

// ClassifyPlatform derives the platform from a session's start URL
func ClassifyPlatform(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return PlatformGeneric
	}
	host := strings.ToLower(u.Host)
	for _, m := range hostMarkers {
		if strings.Contains(host, m.marker) {
			return m.platform
		}
	}
	return PlatformGeneric
}

// Terminal reports whether a status is an end state for the session
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
