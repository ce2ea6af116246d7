package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"asrtt/internal/api"
	"asrtt/internal/apiclient"
)

func TestShouldTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/should-track" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"maxIdleTime":240}`))
	}))
	defer srv.Close()

	got, err := apiclient.New(srv.URL).ShouldTrack(context.Background())
	if err != nil {
		t.Fatalf("ShouldTrack: %v", err)
	}
	if got != 240 {
		t.Fatalf("expected 240, got %d", got)
	}
}

func TestShouldTrackDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	got, err := apiclient.New(srv.URL).ShouldTrack(context.Background())
	if err != nil || got != 0 {
		t.Fatalf("expected 0, got %d (%v)", got, err)
	}
}

func TestSetMaxIdleTime(t *testing.T) {
	var received api.MaxIdleTimeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/max-idle-time" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		if received.Password != "pw" {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL)
	if err := client.SetMaxIdleTime(context.Background(), "pw", 90); err != nil {
		t.Fatalf("SetMaxIdleTime: %v", err)
	}
	if received.Time != "90" {
		t.Fatalf("expected time 90, got %q", received.Time)
	}
	err := client.SetMaxIdleTime(context.Background(), "nope", 90)
	if !errors.Is(err, apiclient.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestStatusSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(api.StatusResponse{
			MaxIdleTime: 180,
			Enabled:     true,
			Workers:     []api.WorkerStatus{{Worker: "…abcd", Working: true}},
		})
	}))
	defer srv.Close()

	if _, err := apiclient.New(srv.URL).Status(context.Background()); !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	status, err := apiclient.New(srv.URL, apiclient.WithToken("tok")).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.MaxIdleTime != 180 || len(status.Workers) != 1 || status.Workers[0].Worker != "…abcd" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestHistoryPassesLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "7" {
			t.Errorf("expected limit 7, got %q", got)
		}
		_, _ = w.Write([]byte(`{"entries":[{"id":"a","worker":"…abcd","branch":"1-x","elapsedSeconds":5,"elapsed":"0h 0m 5s","logged":true,"reason":"explicit","stoppedAt":"2024-01-01T00:00:00.000Z"}]}`))
	}))
	defer srv.Close()

	entries, err := apiclient.New(srv.URL).History(context.Background(), 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].Branch != "1-x" || !entries[0].Logged {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := apiclient.New(srv.URL).SetMaxIdleTime(context.Background(), "pw", -1)
	var statusErr *apiclient.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("expected StatusError 400, got %v", err)
	}
}
