package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/middleware"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/session"
	ws "github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the countdown to the browser so the visible timer and
// the server's expiry decision never drift apart.
type WSHandler struct {
	sessions *session.Manager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *session.Manager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// CountdownStream godoc
// WS /ws/v1/student/exams/:exam_id/countdown
// Pushes one tick per second with the derived remaining seconds. When the
// session leaves the active phase a single terminal event is sent and the
// stream closes; the UI fetches the submit result over HTTP.
func (h *WSHandler) CountdownStream(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctrl, ok := h.sessions.Get(identity.StudentID, examID)
	if !ok {
		ws.WriteError(conn, "no active session for this exam")
		return
	}

	wsLog := h.log.With().
		Int("student_id", identity.StudentID).
		Str("exam_id", examID).
		Logger()
	wsLog.Debug().Msg("Countdown stream connected")

	// Read pump: we expect no client messages, but reading is the only way
	// to notice the browser going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		st := ctrl.State()

		if st.Phase != session.PhaseActive {
			event := ws.EventExpired
			if st.Phase == session.PhaseSubmitted {
				event = ws.EventSubmitted
			}
			_ = ws.WriteTyped(conn, ws.TerminalResponse{Event: event, Phase: st.Phase})
			wsLog.Debug().Str("phase", string(st.Phase)).Msg("Countdown stream finished")
			return
		}

		if err := ws.WriteTyped(conn, ws.TickResponse{
			Event:            ws.EventTick,
			RemainingSeconds: st.RemainingSeconds,
			Phase:            st.Phase,
		}); err != nil {
			wsLog.Debug().Msg("Countdown stream closed by client")
			return
		}

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
