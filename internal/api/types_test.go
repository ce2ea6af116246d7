package api

import (
	"encoding/json"
	"testing"
	"time"

	"asrtt/internal/history"
	"asrtt/internal/tracker"
)

func TestMaxIdleTimeRequestAcceptsNumberOrString(t *testing.T) {
	tests := []struct {
		body string
		want Threshold
	}{
		{`{"password":"p","time":120}`, "120"},
		{`{"password":"p","time":"90"}`, "90"},
		{`{"password":"p","time":0}`, "0"},
		{`{"password":"p","time":null}`, ""},
		{`{"password":"p"}`, ""},
		{`{"password":"p","time":1.5}`, "1.5"},
		{`{"password":"p","time":true}`, "true"},
	}
	for _, tt := range tests {
		var req MaxIdleTimeRequest
		if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.body, err)
		}
		if req.Time != tt.want || req.Password != "p" {
			t.Fatalf("%s: got %+v", tt.body, req)
		}
	}
}

func TestThresholdMarshalsIntegersAsNumbers(t *testing.T) {
	data, err := json.Marshal(MaxIdleTimeRequest{Password: "p", Time: NewThreshold(300)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"password":"p","time":300}` {
		t.Fatalf("unexpected body %s", data)
	}
	data, err = json.Marshal(Threshold("abc"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"abc"` {
		t.Fatalf("unexpected body %s", data)
	}
}

func TestShouldTrackResponseOmitsZero(t *testing.T) {
	data, _ := json.Marshal(ShouldTrackResponse{})
	if string(data) != "{}" {
		t.Fatalf("expected {}, got %s", data)
	}
	data, _ = json.Marshal(ShouldTrackResponse{MaxIdleTime: 180})
	if string(data) != `{"maxIdleTime":180}` {
		t.Fatalf("unexpected body %s", data)
	}
}

func TestWorkingRequestActivity(t *testing.T) {
	var req WorkingRequest
	body := `{"togglToken":"tt","gitBranch":"1-a","gitlabProject":"g/p","gitlabToken":"gl","gitlabHostname":"gitlab.example.com"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := req.Activity()
	want := tracker.Activity{Worker: "tt", Branch: "1-a", Project: "g/p", Host: "gitlab.example.com", Token: "gl"}
	if got != want {
		t.Fatalf("Activity() = %+v, want %+v", got, want)
	}
}

func TestFromTrackerStatus(t *testing.T) {
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	status := tracker.Status{
		Threshold: 180,
		Enabled:   true,
		Workers: []tracker.WorkerSnapshot{
			{Worker: "…abcd", Working: true, Branch: "77-thing", Project: "g/p", Since: since, TimerArmed: true, Deadline: since.Add(3 * time.Minute)},
			{Worker: "…wxyz", Branch: "main"},
		},
	}
	resp := FromTrackerStatus(status)
	if resp.MaxIdleTime != 180 || !resp.Enabled || len(resp.Workers) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	first := resp.Workers[0]
	if first.Issue != 77 || first.Since != "2024-01-02T03:04:05.000Z" || first.IdleDeadline != "2024-01-02T03:07:05.000Z" {
		t.Fatalf("unexpected worker %+v", first)
	}
	second := resp.Workers[1]
	if second.Issue != 0 || second.Since != "" || second.IdleDeadline != "" {
		t.Fatalf("unexpected worker %+v", second)
	}
}

func TestFromHistoryEntry(t *testing.T) {
	stopped := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := FromHistoryEntry(history.Entry{
		ID:        "id-1",
		Worker:    "…abcd",
		Branch:    "5-x",
		Issue:     5,
		Elapsed:   3723 * time.Second,
		Logged:    true,
		Reason:    "idle_timeout",
		StoppedAt: stopped,
	})
	if got.Elapsed != "1h 2m 3s" || got.ElapsedSeconds != 3723 {
		t.Fatalf("unexpected elapsed %q/%d", got.Elapsed, got.ElapsedSeconds)
	}
	if got.StartedAt != "" || got.StoppedAt != "2024-01-02T03:04:05.000Z" {
		t.Fatalf("unexpected timestamps %+v", got)
	}
	if parsed, ok := ParseTime(got.StoppedAt); !ok || !parsed.Equal(stopped) {
		t.Fatalf("ParseTime round trip failed: %v %v", parsed, ok)
	}
}
