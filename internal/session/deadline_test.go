package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/storage"
)

func TestEstablishOrResumeIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ds := NewDeadlineStore(kv, zerolog.Nop())

	base := time.Unix(1_700_000_000, 0)
	ds.now = func() time.Time { return base }

	first, err := ds.EstablishOrResume(ctx, 7, "exam-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if want := base.Add(30 * time.Minute); !first.Equal(want) {
		t.Fatalf("expected end %v, got %v", want, first)
	}

	// Simulated reloads: even with the clock moving, the stored end time
	// must come back unchanged.
	for i := 0; i < 5; i++ {
		ds.now = func() time.Time { return base.Add(time.Duration(i+1) * 10 * time.Minute) }
		again, err := ds.EstablishOrResume(ctx, 7, "exam-1", 30*time.Minute)
		if err != nil {
			t.Fatalf("resume %d: %v", i, err)
		}
		if !again.Equal(first) {
			t.Fatalf("resume %d changed end time: %v != %v", i, again, first)
		}
	}
}

func TestEstablishOrResumeSeparateSessions(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ds := NewDeadlineStore(kv, zerolog.Nop())

	a, err := ds.EstablishOrResume(ctx, 7, "exam-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("establish a: %v", err)
	}
	b, err := ds.EstablishOrResume(ctx, 7, "exam-2", 90*time.Minute)
	if err != nil {
		t.Fatalf("establish b: %v", err)
	}
	if !b.After(a) {
		t.Fatalf("expected exam-2 deadline after exam-1: %v vs %v", b, a)
	}

	// Other-student sessions must not collide either.
	c, err := ds.EstablishOrResume(ctx, 8, "exam-1", 90*time.Minute)
	if err != nil {
		t.Fatalf("establish c: %v", err)
	}
	if c.Equal(a) {
		t.Fatalf("student 8 resumed student 7's deadline")
	}
}

func TestCorruptDeadlineTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ds := NewDeadlineStore(kv, zerolog.Nop())

	key := config.StorageKey.SessionDeadlineKey(7, "exam-1")
	if err := kv.Set(ctx, key, "definitely-not-epoch-seconds"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	base := time.Unix(1_700_000_000, 0)
	ds.now = func() time.Time { return base }

	end, err := ds.EstablishOrResume(ctx, 7, "exam-1", 45*time.Minute)
	if err != nil {
		t.Fatalf("establish over corrupt value: %v", err)
	}
	if want := base.Add(45 * time.Minute); !end.Equal(want) {
		t.Fatalf("expected fresh end %v, got %v", want, end)
	}

	// The fresh value must now be durable.
	again, err := ds.EstablishOrResume(ctx, 7, "exam-1", 45*time.Minute)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !again.Equal(end) {
		t.Fatalf("repaired deadline not stable: %v != %v", again, end)
	}
}

func TestDeadlineClear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ds := NewDeadlineStore(kv, zerolog.Nop())

	base := time.Unix(1_700_000_000, 0)
	ds.now = func() time.Time { return base }

	if _, err := ds.EstablishOrResume(ctx, 7, "exam-1", 30*time.Minute); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if err := ds.Clear(ctx, 7, "exam-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	ds.now = func() time.Time { return base.Add(time.Hour) }
	end, err := ds.EstablishOrResume(ctx, 7, "exam-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("re-establish: %v", err)
	}
	if want := base.Add(time.Hour + 30*time.Minute); !end.Equal(want) {
		t.Fatalf("expected new session end %v, got %v", want, end)
	}
}
