package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/middleware"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/model"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/response"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/session"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/upstream"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/validator"
)

// PortalHandler exposes the exam session controller to the browser UI:
// start/resume, state snapshots, answer/flag/navigate mutations and the
// exactly-once submit.
type PortalHandler struct {
	sessions *session.Manager
	api      *upstream.Client
	log      zerolog.Logger
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(sessions *session.Manager, api *upstream.Client, log zerolog.Logger) *PortalHandler {
	return &PortalHandler{
		sessions: sessions,
		api:      api,
		log:      log.With().Str("component", "portal_handler").Logger(),
	}
}

// examIDParam returns the :exam_id path param, rejecting values that could
// break out of the per-session storage key namespace.
func examIDParam(c *gin.Context) (string, bool) {
	examID := c.Param("exam_id")
	if examID == "" || len(examID) > 64 || strings.ContainsAny(examID, ": \t\n") {
		return "", false
	}
	return examID, true
}

// GetPeriods godoc
// GET /api/v1/student/periods
// Passes the student's exam schedule through from the upstream API.
func (h *PortalHandler) GetPeriods(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	periods, err := h.api.FetchPeriods(c.Request.Context(), identity.Token)
	if err != nil {
		response.Fail(c, http.StatusBadGateway, response.ErrPeriodsFailed)
		return
	}
	if periods == nil {
		periods = []model.ExamPeriod{}
	}

	response.Success(c, http.StatusOK, gin.H{"periods": periods})
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/session
// Loads the paper, establishes or resumes the deadline, rehydrates the
// ledger and starts the countdown. Any load failure is fatal: no session
// is registered and the UI must navigate back to the dashboard.
func (h *PortalHandler) StartSession(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	ctrl, err := h.sessions.StartOrResume(c.Request.Context(), *identity, examID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
			return
		}
		h.log.Warn().Err(err).Str("exam_id", examID).Msg("Session start failed")
		response.Fail(c, http.StatusBadGateway, response.ErrLoadFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"paper": ctrl.Paper(),
		"state": ctrl.State(),
	})
}

// GetState godoc
// GET /api/v1/student/exams/:exam_id/session
// Returns the current session snapshot: remaining seconds, current index
// and the per-question answered/flagged overlay for the navigator.
func (h *PortalHandler) GetState(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": ctrl.State()})
}

// SetAnswer godoc
// PUT /api/v1/student/exams/:exam_id/answer
// Records a single-select answer; the ledger persists before this responds.
func (h *PortalHandler) SetAnswer(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	var req model.SetAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := ctrl.Answer(c.Request.Context(), req.QuestionID, req.Answer); err != nil {
		h.failMutation(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": ctrl.State()})
}

// ToggleFlag godoc
// POST /api/v1/student/exams/:exam_id/flag
// Flips the doubtful mark on a question.
func (h *PortalHandler) ToggleFlag(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	var req model.ToggleFlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := ctrl.ToggleFlag(c.Request.Context(), req.QuestionID); err != nil {
		h.failMutation(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": ctrl.State()})
}

// Navigate godoc
// PUT /api/v1/student/exams/:exam_id/position
// Moves the volatile current-question pointer.
func (h *PortalHandler) Navigate(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := ctrl.Navigate(req.Index); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrIndexOutOfRange)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": ctrl.State()})
}

// SubmitSession godoc
// POST /api/v1/student/exams/:exam_id/submit
// Manual finish. Converges with timer expiry on the controller's single
// submit path; a second trigger while one is in flight is absorbed.
func (h *PortalHandler) SubmitSession(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	// Deliberately not the request context: a client that navigates away
	// mid-submit must not cancel the in-flight submission, or a reload
	// would resurrect an already-finished session.
	result, err := ctrl.Finish(context.Background())
	if err != nil {
		if errors.Is(err, session.ErrSubmitInFlight) {
			response.Success(c, http.StatusAccepted, gin.H{"status": "in_progress"})
			return
		}
		response.Fail(c, http.StatusBadGateway, response.ErrSubmitFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// CloseSession godoc
// DELETE /api/v1/student/exams/:exam_id/session
// View teardown: stops the countdown without submitting. Persisted state
// stays, so a reload resumes the session.
func (h *PortalHandler) CloseSession(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	h.sessions.Remove(identity.StudentID, examID)
	response.Success(c, http.StatusOK, gin.H{"status": "closed"})
}

// liveSession resolves the caller's controller or writes the error response.
func (h *PortalHandler) liveSession(c *gin.Context) (*session.Controller, bool) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	examID, ok := examIDParam(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return nil, false
	}

	ctrl, ok := h.sessions.Get(identity.StudentID, examID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return nil, false
	}
	return ctrl, true
}

func (h *PortalHandler) failMutation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionClosed):
		response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownQuestion)
	case errors.Is(err, session.ErrInvalidOption):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidOption)
	default:
		h.log.Error().Err(err).Msg("Mutation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
