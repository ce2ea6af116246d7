package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"asrtt/internal/tracker"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WorkingRequest is the activity payload sent by editor clients.
type WorkingRequest struct {
	TogglToken     string `json:"togglToken"`
	GitBranch      string `json:"gitBranch"`
	GitlabProject  string `json:"gitlabProject"`
	GitlabToken    string `json:"gitlabToken"`
	GitlabHostname string `json:"gitlabHostname"`
}

// Activity converts the request into a tracker signal.
func (r WorkingRequest) Activity() tracker.Activity {
	return tracker.Activity{
		Worker:  r.TogglToken,
		Branch:  r.GitBranch,
		Project: r.GitlabProject,
		Host:    r.GitlabHostname,
		Token:   r.GitlabToken,
	}
}

// Threshold is a raw idle threshold as received on the wire.
type Threshold string

// UnmarshalJSON accepts a number or a string and keeps its text.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Threshold(s)
		return nil
	}
	*t = Threshold(data)
	return nil
}

// MarshalJSON writes integers as numbers and anything else as a string.
func (t Threshold) MarshalJSON() ([]byte, error) {
	text := strings.TrimSpace(string(t))
	if _, err := strconv.Atoi(text); err == nil {
		return []byte(text), nil
	}
	return json.Marshal(string(t))
}

// NewThreshold formats seconds for a MaxIdleTimeRequest.
func NewThreshold(seconds int) Threshold {
	return Threshold(strconv.Itoa(seconds))
}

// MaxIdleTimeRequest changes the process-wide idle threshold.
type MaxIdleTimeRequest struct {
	Password string    `json:"password"`
	Time     Threshold `json:"time"`
}

// ShouldTrackResponse advertises the idle threshold to polling clients.
type ShouldTrackResponse struct {
	MaxIdleTime int `json:"maxIdleTime,omitempty"`
}

// WorkerStatus describes one worker in a transport-friendly format.
type WorkerStatus struct {
	Worker       string `json:"worker"`
	Working      bool   `json:"working"`
	Branch       string `json:"branch,omitempty"`
	Project      string `json:"project,omitempty"`
	Host         string `json:"host,omitempty"`
	Issue        int    `json:"issue,omitempty"`
	Since        string `json:"since,omitempty"`
	TimerArmed   bool   `json:"timerArmed"`
	IdleDeadline string `json:"idleDeadline,omitempty"`
	PendingTasks int    `json:"pendingTasks"`
}

// StatusResponse aggregates server runtime information.
type StatusResponse struct {
	MaxIdleTime    int            `json:"maxIdleTime"`
	Enabled        bool           `json:"enabled"`
	ControlEnabled bool           `json:"controlEnabled"`
	HistoryEnabled bool           `json:"historyEnabled"`
	PID            int            `json:"pid"`
	StartedAt      string         `json:"startedAt,omitempty"`
	Workers        []WorkerStatus `json:"workers"`
}

// HistoryEntry describes one closed session.
type HistoryEntry struct {
	ID             string `json:"id"`
	Worker         string `json:"worker"`
	Branch         string `json:"branch"`
	Project        string `json:"project,omitempty"`
	Host           string `json:"host,omitempty"`
	Issue          int    `json:"issue,omitempty"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	Elapsed        string `json:"elapsed"`
	Logged         bool   `json:"logged"`
	Reason         string `json:"reason"`
	StartedAt      string `json:"startedAt,omitempty"`
	StoppedAt      string `json:"stoppedAt"`
}

// HistoryResponse wraps recent closed sessions.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// ErrorResponse is returned by /api routes on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
