package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"asrtt/internal/history"
	"asrtt/internal/testsupport"
	"asrtt/internal/tracker"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	return testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sessions := []tracker.Session{
		{Worker: "…abcd", Branch: "12-login", Project: "group/app", Host: "gitlab.example.com", Elapsed: 90 * time.Second, Remote: true, Reason: tracker.ReasonIdleTimeout, StartedAt: base, StoppedAt: base.Add(time.Minute)},
		{Worker: "…abcd", Branch: "main", Project: "group/app", Elapsed: 30 * time.Second, Remote: true, Reason: tracker.ReasonExplicit, StoppedAt: base.Add(2 * time.Minute)},
		{Worker: "…wxyz", Branch: "7-docs", Project: "group/docs", Reason: tracker.ReasonDisabled, StoppedAt: base.Add(3 * time.Minute)},
	}
	for _, s := range sessions {
		if err := store.Record(ctx, s); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Branch != "7-docs" || entries[2].Branch != "12-login" {
		t.Fatalf("expected newest first, got %q..%q", entries[0].Branch, entries[2].Branch)
	}

	first := entries[2]
	if first.ID == "" || first.Issue != 12 || !first.Logged || first.Elapsed != 90*time.Second {
		t.Fatalf("unexpected entry %+v", first)
	}
	if !first.StartedAt.Equal(base) || !first.StoppedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected timestamps %v/%v", first.StartedAt, first.StoppedAt)
	}
	if first.Reason != string(tracker.ReasonIdleTimeout) {
		t.Fatalf("unexpected reason %q", first.Reason)
	}

	unlinked := entries[1]
	if unlinked.Issue != 0 || unlinked.Logged {
		t.Fatalf("unlinked branch should not be logged: %+v", unlinked)
	}
	if entries[0].Logged {
		t.Fatal("session without remote stop should not be logged")
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(limited) != 1 || limited[0].Branch != "7-docs" {
		t.Fatalf("unexpected limited result %+v", limited)
	}
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := tracker.Session{Worker: "…a", Branch: "1-a", Reason: tracker.ReasonExplicit, StoppedAt: now.Add(-48 * time.Hour)}
	recent := tracker.Session{Worker: "…a", Branch: "2-b", Reason: tracker.ReasonExplicit, StoppedAt: now}
	for _, s := range []tracker.Session{old, recent} {
		if err := store.Record(ctx, s); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Branch != "2-b" {
		t.Fatalf("unexpected entries after prune %+v", entries)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = db.Close()

	if _, err := history.OpenPath(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenPathRequiresPath(t *testing.T) {
	if _, err := history.OpenPath(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
