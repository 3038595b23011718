package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/model"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/storage"
)

// Ledger is the durable record of a student's in-progress work. Every
// mutation writes the full snapshot through to storage before it is
// acknowledged, so the caller never observes answered-but-not-saved state.
type Ledger struct {
	kv  storage.KV
	log zerolog.Logger
}

// NewLedger creates a Ledger on top of the given KV backend.
func NewLedger(kv storage.KV, log zerolog.Logger) *Ledger {
	return &Ledger{
		kv:  kv,
		log: log.With().Str("component", "answer_ledger").Logger(),
	}
}

// Load returns the persisted snapshot for the session. Missing or malformed
// data yields empty containers, never an error — starting clean beats
// crashing the exam view.
func (l *Ledger) Load(ctx context.Context, studentID int, examID string) *model.Snapshot {
	key := config.StorageKey.SessionLedgerKey(studentID, examID)

	val, err := l.kv.Get(ctx, key)
	if err != nil {
		if err != storage.ErrNotFound {
			l.log.Warn().Err(err).Str("key", key).Msg("Ledger read failed, starting empty")
		}
		return model.NewSnapshot()
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("Corrupt ledger data, starting empty")
		return model.NewSnapshot()
	}
	if snap.Answers == nil {
		snap.Answers = make(map[string]string)
	}
	if snap.Flagged == nil {
		snap.Flagged = []string{}
	}
	return &snap
}

// SetAnswer upserts a single answer (single-select: a new value overwrites
// any prior one) and persists the full snapshot. Returns the updated
// snapshot only once the write has gone through.
func (l *Ledger) SetAnswer(ctx context.Context, studentID int, examID, questionID, value string) (*model.Snapshot, error) {
	snap := l.Load(ctx, studentID, examID)
	snap.Answers[questionID] = value

	if err := l.persist(ctx, studentID, examID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ToggleFlag flips the doubtful mark on a question and persists the full
// snapshot.
func (l *Ledger) ToggleFlag(ctx context.Context, studentID int, examID, questionID string) (*model.Snapshot, error) {
	snap := l.Load(ctx, studentID, examID)

	found := false
	flagged := snap.Flagged[:0]
	for _, id := range snap.Flagged {
		if id == questionID {
			found = true
			continue
		}
		flagged = append(flagged, id)
	}
	if !found {
		flagged = append(flagged, questionID)
	}
	snap.Flagged = flagged

	if err := l.persist(ctx, studentID, examID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Clear removes all persisted answer/flag data for the session. Only called
// in tandem with DeadlineStore.Clear after a confirmed submission.
func (l *Ledger) Clear(ctx context.Context, studentID int, examID string) error {
	return l.kv.Delete(ctx, config.StorageKey.SessionLedgerKey(studentID, examID))
}

func (l *Ledger) persist(ctx context.Context, studentID int, examID string, snap *model.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal ledger snapshot: %w", err)
	}
	key := config.StorageKey.SessionLedgerKey(studentID, examID)
	if err := l.kv.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("persist ledger snapshot: %w", err)
	}
	return nil
}
