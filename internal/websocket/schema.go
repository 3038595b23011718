package websocket

import (
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/session"
)

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventExpired   Event = "expired"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
)

// TickResponse is pushed once per second while the session is active.
// Remaining seconds are derived server-side; the browser never keeps its
// own deadline.
type TickResponse struct {
	Event            Event         `json:"event"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	Phase            session.Phase `json:"phase"`
}

// TerminalResponse closes the stream: the session either expired or was
// submitted while the socket was open.
type TerminalResponse struct {
	Event Event         `json:"event"`
	Phase session.Phase `json:"phase"`
}

// ErrorResponse reports a stream-level failure before closing.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
