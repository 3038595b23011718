package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/storage"
)

// Manager is the registry of live session controllers, one per
// (student, exam) pair — the service-side equivalent of one session per
// browser context. Controllers are created on demand, survive reloads via
// the persisted deadline and ledger, and are removed on teardown or after
// the manager itself shuts down.
type Manager struct {
	api       ExamAPI
	deadlines *DeadlineStore
	ledger    *Ledger
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewManager creates a Manager with its stores layered over the KV backend.
func NewManager(api ExamAPI, kv storage.KV, log zerolog.Logger) *Manager {
	return &Manager{
		api:       api,
		deadlines: NewDeadlineStore(kv, log),
		ledger:    NewLedger(kv, log),
		log:       log.With().Str("component", "session_manager").Logger(),
		sessions:  make(map[string]*Controller),
	}
}

func sessionKey(studentID int, examID string) string {
	return fmt.Sprintf("%d:%s", studentID, examID)
}

// StartOrResume returns the live controller for the pair, creating and
// starting one if none exists. A failed Start leaves no registration — the
// session is abandoned (fatal load). A previously submitted controller is
// replaced so the upstream decides whether a new attempt is allowed.
func (m *Manager) StartOrResume(ctx context.Context, student Identity, examID string) (*Controller, error) {
	key := sessionKey(student.StudentID, examID)

	m.mu.Lock()
	if ctrl, ok := m.sessions[key]; ok && !ctrl.Submitted() {
		m.mu.Unlock()
		return ctrl, nil
	}
	m.mu.Unlock()

	ctrl := NewController(m.api, m.deadlines, m.ledger, m.log, student, examID)
	if err := ctrl.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent start for the same pair may have won the race; prefer
	// the registered one and discard ours.
	if existing, ok := m.sessions[key]; ok && !existing.Submitted() {
		ctrl.Close()
		return existing, nil
	}
	m.sessions[key] = ctrl
	return ctrl, nil
}

// Get returns the live controller for the pair, if any.
func (m *Manager) Get(studentID int, examID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.sessions[sessionKey(studentID, examID)]
	return ctrl, ok
}

// Remove tears down and unregisters the controller for the pair. The
// countdown stops without firing; persisted state is untouched so a later
// StartOrResume picks the session back up.
func (m *Manager) Remove(studentID int, examID string) {
	key := sessionKey(studentID, examID)
	m.mu.Lock()
	ctrl, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()
	if ok {
		ctrl.Close()
	}
}

// CloseAll stops every countdown. Called on shutdown; in-flight submissions
// are left to complete on their own background contexts.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ctrl := range m.sessions {
		ctrl.Close()
		delete(m.sessions, key)
	}
	m.log.Info().Msg("All sessions closed")
}
