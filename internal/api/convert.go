package api

import (
	"time"

	"asrtt/internal/history"
	"asrtt/internal/services/gitlab"
	"asrtt/internal/timefmt"
	"asrtt/internal/tracker"
)

// FromWorkerSnapshot converts a tracker snapshot to its API representation.
func FromWorkerSnapshot(snap tracker.WorkerSnapshot) WorkerStatus {
	dto := WorkerStatus{
		Worker:       snap.Worker,
		Working:      snap.Working,
		Branch:       snap.Branch,
		Project:      snap.Project,
		Host:         snap.Host,
		TimerArmed:   snap.TimerArmed,
		Since:        formatTime(snap.Since),
		PendingTasks: snap.Pending,
	}
	if issue, ok := gitlab.IssueFromBranch(snap.Branch); ok {
		dto.Issue = issue
	}
	if snap.TimerArmed {
		dto.IdleDeadline = formatTime(snap.Deadline)
	}
	return dto
}

// FromTrackerStatus converts the tracker view. Runtime fields such as PID are
// filled in by the caller.
func FromTrackerStatus(status tracker.Status) StatusResponse {
	resp := StatusResponse{
		MaxIdleTime: status.Threshold,
		Enabled:     status.Enabled,
		Workers:     make([]WorkerStatus, 0, len(status.Workers)),
	}
	for _, w := range status.Workers {
		resp.Workers = append(resp.Workers, FromWorkerSnapshot(w))
	}
	return resp
}

// FromHistoryEntry converts a journal row.
func FromHistoryEntry(entry history.Entry) HistoryEntry {
	return HistoryEntry{
		ID:             entry.ID,
		Worker:         entry.Worker,
		Branch:         entry.Branch,
		Project:        entry.Project,
		Host:           entry.Host,
		Issue:          entry.Issue,
		ElapsedSeconds: int64(entry.Elapsed / time.Second),
		Elapsed:        timefmt.Spent(entry.Elapsed, true),
		Logged:         entry.Logged,
		Reason:         entry.Reason,
		StartedAt:      formatTime(entry.StartedAt),
		StoppedAt:      formatTime(entry.StoppedAt),
	}
}

// FromHistoryEntries converts journal rows, preserving order.
func FromHistoryEntries(entries []history.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromHistoryEntry(e))
	}
	return out
}

// ParseTime reads a timestamp produced by this package.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
