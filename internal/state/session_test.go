// internal/state/session_test.go
package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/docchat/internal/types"
)

func sampleSessions() []types.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return []types.Session{
		{
			ID:        types.NewSessionID(),
			Title:     "Second",
			CreatedAt: now,
			Messages: []types.Message{
				{Role: types.RoleUser, Text: "hello", Timestamp: now},
				{Role: types.RoleAssistant, Text: "hi there", Timestamp: now},
			},
		},
		{
			ID:        types.NewSessionID(),
			Title:     types.DefaultTitle,
			CreatedAt: now.Add(-time.Hour),
			Messages:  []types.Message{},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "")
	ctx := context.Background()

	want := sampleSessions()
	if err := store.Save(ctx, want); err != nil {
		t.Fatal(err)
	}

	got := store.Load(ctx)
	if len(got) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("session %d: expected id %s, got %s", i, want[i].ID, got[i].ID)
		}
		if got[i].Title != want[i].Title {
			t.Errorf("session %d: expected title %q, got %q", i, want[i].Title, got[i].Title)
		}
		if len(got[i].Messages) != len(want[i].Messages) {
			t.Errorf("session %d: expected %d messages, got %d", i, len(want[i].Messages), len(got[i].Messages))
		}
	}
	if got[0].Messages[1].Role != types.RoleAssistant {
		t.Errorf("expected assistant role, got %s", got[0].Messages[1].Role)
	}
}

func TestFileStoreUsesKeyAsFileName(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "")
	if err := store.Save(context.Background(), sampleSessions()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "chats_v1.json")); err != nil {
		t.Fatalf("expected chats_v1.json: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "chats_v1.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(t.TempDir(), "")
	got := store.Load(context.Background())
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil collection, got %v", got)
	}
}

func TestFileStoreLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "")
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := store.Load(context.Background())
	if len(got) != 0 {
		t.Errorf("expected empty collection for malformed file, got %d sessions", len(got))
	}
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	store := NewFileStore(t.TempDir(), "")
	ctx := context.Background()

	if err := store.Save(ctx, sampleSessions()); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, nil); err != nil {
		t.Fatal(err)
	}

	if got := store.Load(ctx); len(got) != 0 {
		t.Errorf("expected empty collection after overwrite, got %d", len(got))
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, _, err := Open("bolt", t.TempDir(), ""); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
