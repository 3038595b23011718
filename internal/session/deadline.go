package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/storage"
)

// DeadlineStore persists the absolute end time of an exam session as epoch
// seconds. Once written, the stored value is the sole source of truth for
// the session's lifetime — resuming never recomputes it, otherwise every
// reload would silently extend the exam.
type DeadlineStore struct {
	kv  storage.KV
	log zerolog.Logger
	now func() time.Time
}

// NewDeadlineStore creates a DeadlineStore on top of the given KV backend.
func NewDeadlineStore(kv storage.KV, log zerolog.Logger) *DeadlineStore {
	return &DeadlineStore{
		kv:  kv,
		log: log.With().Str("component", "deadline_store").Logger(),
		now: time.Now,
	}
}

// EstablishOrResume returns the persisted end time for the session if one
// exists, otherwise persists now+duration and returns that. Safe to call on
// every page load: with stored state present it has no side effects.
// An unreadable or corrupt stored value is treated as absent.
func (s *DeadlineStore) EstablishOrResume(ctx context.Context, studentID int, examID string, duration time.Duration) (time.Time, error) {
	key := config.StorageKey.SessionDeadlineKey(studentID, examID)

	val, err := s.kv.Get(ctx, key)
	if err == nil {
		sec, parseErr := strconv.ParseInt(val, 10, 64)
		if parseErr == nil {
			return time.Unix(sec, 0), nil
		}
		s.log.Warn().
			Str("key", key).
			Str("value", val).
			Msg("Corrupt deadline value, establishing fresh")
	} else if err != storage.ErrNotFound {
		s.log.Warn().Err(err).Str("key", key).Msg("Deadline read failed, establishing fresh")
	}

	end := time.Unix(s.now().Add(duration).Unix(), 0)
	if err := s.kv.Set(ctx, key, strconv.FormatInt(end.Unix(), 10)); err != nil {
		return time.Time{}, fmt.Errorf("persist deadline: %w", err)
	}
	return end, nil
}

// Clear removes the persisted end time. Only called after a terminal
// submission outcome, together with Ledger.Clear.
func (s *DeadlineStore) Clear(ctx context.Context, studentID int, examID string) error {
	return s.kv.Delete(ctx, config.StorageKey.SessionDeadlineKey(studentID, examID))
}
