package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/storage"
)

func TestManagerReturnsSameControllerWhileLive(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper()}
	m := NewManager(api, storage.NewMemory(), zerolog.Nop())
	defer m.CloseAll()

	a, err := m.StartOrResume(ctx, testIdentity(), "exam-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	b, err := m.StartOrResume(ctx, testIdentity(), "exam-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if a != b {
		t.Fatalf("expected the live controller to be reused")
	}
}

func TestManagerLoadFailureRegistersNothing(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{fetchErr: context.DeadlineExceeded}
	m := NewManager(api, storage.NewMemory(), zerolog.Nop())

	if _, err := m.StartOrResume(ctx, testIdentity(), "exam-1"); err == nil {
		t.Fatalf("expected load failure")
	}
	if _, ok := m.Get(7, "exam-1"); ok {
		t.Fatalf("failed session must not be registered")
	}
}

func TestManagerRemoveKeepsPersistedState(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper()}
	kv := storage.NewMemory()
	m := NewManager(api, kv, zerolog.Nop())
	defer m.CloseAll()

	a, err := m.StartOrResume(ctx, testIdentity(), "exam-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := a.Answer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	m.Remove(7, "exam-1")
	if _, ok := m.Get(7, "exam-1"); ok {
		t.Fatalf("controller still registered after remove")
	}

	// Teardown is not termination: a resume rehydrates the same work.
	b, err := m.StartOrResume(ctx, testIdentity(), "exam-1")
	if err != nil {
		t.Fatalf("resume after remove: %v", err)
	}
	b.mu.Lock()
	got := b.snapshot.Answers["q1"]
	b.mu.Unlock()
	if got != "B" {
		t.Fatalf("expected rehydrated answer B, got %q", got)
	}
}
