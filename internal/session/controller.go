package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/model"
)

// ExamAPI is the upstream collaborator contract the controller depends on.
// Implemented by upstream.Client; faked in tests.
type ExamAPI interface {
	FetchExam(ctx context.Context, token, examID string) (*model.ExamPaper, error)
	SubmitExam(ctx context.Context, token, examID string, payload *model.SubmissionPayload) (*model.SubmissionResult, error)
}

// Identity is the acting student, taken from the verified JWT claims.
// Token is the student's own upstream bearer token, forwarded on every call.
type Identity struct {
	StudentID int
	Name      string
	Token     string
}

// Phase describes where a session is in its lifecycle.
type Phase string

const (
	PhaseActive       Phase = "ACTIVE"
	PhaseSubmitting   Phase = "SUBMITTING"
	PhaseSubmitFailed Phase = "SUBMIT_FAILED"
	PhaseSubmitted    Phase = "SUBMITTED"
)

var (
	// ErrSessionClosed rejects edits once finishing has begun; a late edit
	// must never resurrect an expired session.
	ErrSessionClosed = errors.New("session: closed, no further edits accepted")
	// ErrSubmitInFlight absorbs the second trigger of a double submit.
	ErrSubmitInFlight = errors.New("session: submission already in progress")
	// ErrUnknownQuestion rejects answers for questions not on the paper.
	ErrUnknownQuestion = errors.New("session: unknown question")
	// ErrInvalidOption rejects a multiple-choice answer that names no option.
	ErrInvalidOption = errors.New("session: option not on question")
	// ErrIndexOutOfRange rejects navigation outside the question sequence.
	ErrIndexOutOfRange = errors.New("session: question index out of range")
)

// QuestionStatus is the per-question answered/flagged overlay for the
// navigator UI.
type QuestionStatus struct {
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Flagged    bool   `json:"flagged"`
}

// State is the controller's upward-facing snapshot.
type State struct {
	ExamID           string           `json:"exam_id"`
	Phase            Phase            `json:"phase"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	CurrentIndex     int              `json:"current_index"`
	Questions        []QuestionStatus `json:"questions"`
}

// Controller orchestrates one exam session: it loads the paper, establishes
// or resumes the deadline, rehydrates the ledger, runs the countdown and
// owns the exactly-once submission path shared by manual finish and timer
// expiry.
type Controller struct {
	api       ExamAPI
	deadlines *DeadlineStore
	ledger    *Ledger
	log       zerolog.Logger

	student Identity
	examID  string

	mu           sync.Mutex
	paper        *model.ExamPaper
	snapshot     *model.Snapshot
	end          time.Time
	countdown    *Countdown
	currentIndex int

	finishing  bool
	submitting bool
	submitted  bool
	result     *model.SubmissionResult
}

// NewController creates an unstarted controller for one (student, exam) pair.
func NewController(api ExamAPI, deadlines *DeadlineStore, ledger *Ledger, log zerolog.Logger, student Identity, examID string) *Controller {
	return &Controller{
		api:       api,
		deadlines: deadlines,
		ledger:    ledger,
		log: log.With().
			Str("component", "session_controller").
			Int("student_id", student.StudentID).
			Str("exam_id", examID).
			Logger(),
		student: student,
		examID:  examID,
	}
}

// Start performs Load + Resume: fetches the paper, establishes or resumes
// the deadline, rehydrates the ledger and starts the countdown. Any load
// failure is fatal — the caller abandons the session and nothing persisted
// is touched.
func (c *Controller) Start(ctx context.Context) error {
	paper, err := c.api.FetchExam(ctx, c.student.Token, c.examID)
	if err != nil {
		return fmt.Errorf("load exam: %w", err)
	}
	if paper.DurationMinutes <= 0 {
		return errors.New("load exam: upstream reported no duration")
	}

	duration := time.Duration(paper.DurationMinutes) * time.Minute
	end, err := c.deadlines.EstablishOrResume(ctx, c.student.StudentID, c.examID, duration)
	if err != nil {
		return fmt.Errorf("establish deadline: %w", err)
	}

	snap := c.ledger.Load(ctx, c.student.StudentID, c.examID)

	c.mu.Lock()
	c.paper = paper
	c.snapshot = snap
	c.end = end
	c.countdown = NewCountdown(end, c.onExpire)
	c.countdown.Start()
	c.mu.Unlock()

	c.log.Info().
		Time("end", end).
		Int("questions", len(paper.Questions)).
		Int("restored_answers", len(snap.Answers)).
		Msg("Session started")
	return nil
}

// onExpire is invoked exactly once by the countdown. It submits on a
// background context so that tearing down the HTTP request or view can
// never cancel the in-flight submission.
func (c *Controller) onExpire() {
	c.log.Info().Msg("Time expired, auto-submitting")
	if _, err := c.Finish(context.Background()); err != nil && !errors.Is(err, ErrSubmitInFlight) {
		c.log.Error().Err(err).Msg("Auto-submit failed, session state preserved for retry")
	}
}

// Answer records a single-select answer. Rejected once finishing has begun.
func (c *Controller) Answer(ctx context.Context, questionID, value string) (*model.Snapshot, error) {
	c.mu.Lock()
	if c.finishing {
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	q := c.findQuestion(questionID)
	if q == nil {
		c.mu.Unlock()
		return nil, ErrUnknownQuestion
	}
	if q.QuestionType == model.QuestionTypeMultipleChoice && !hasOption(q, value) {
		c.mu.Unlock()
		return nil, ErrInvalidOption
	}
	c.mu.Unlock()

	snap, err := c.ledger.SetAnswer(ctx, c.student.StudentID, c.examID, questionID, value)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
	return snap, nil
}

// ToggleFlag flips the doubtful mark. Rejected once finishing has begun.
func (c *Controller) ToggleFlag(ctx context.Context, questionID string) (*model.Snapshot, error) {
	c.mu.Lock()
	if c.finishing {
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if c.findQuestion(questionID) == nil {
		c.mu.Unlock()
		return nil, ErrUnknownQuestion
	}
	c.mu.Unlock()

	snap, err := c.ledger.ToggleFlag(ctx, c.student.StudentID, c.examID, questionID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
	return snap, nil
}

// Navigate moves the current question pointer. The pointer is volatile —
// it does not survive a reload and is not persisted.
func (c *Controller) Navigate(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.paper.Questions) {
		return ErrIndexOutOfRange
	}
	c.currentIndex = index
	return nil
}

// Finish is the single submit path shared by manual finish and timer
// expiry — whichever fires first wins. A second call while a submission is
// in flight returns ErrSubmitInFlight; a call after success returns the
// stored result again. On failure all persisted state is kept so the
// student can retry, but the countdown stays stopped: remaining time is
// frozen at zero once finishing begins.
func (c *Controller) Finish(ctx context.Context) (*model.SubmissionResult, error) {
	c.mu.Lock()
	if c.submitted {
		result := c.result
		c.mu.Unlock()
		return result, nil
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	c.finishing = true
	c.submitting = true
	c.countdown.Stop()

	payload := &model.SubmissionPayload{
		StudentID:   c.student.StudentID,
		StudentName: c.student.Name,
		Answers:     make(map[string]string, len(c.snapshot.Answers)),
	}
	for qid, ans := range c.snapshot.Answers {
		payload.Answers[qid] = ans
	}
	c.mu.Unlock()

	result, err := c.api.SubmitExam(ctx, c.student.Token, c.examID, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.submitting = false
		c.log.Warn().Err(err).Msg("Submit failed, persisted state preserved")
		return nil, fmt.Errorf("submit exam: %w", err)
	}

	// Terminal outcome: remove persisted state so a later reload cannot
	// resurrect this session. The submission itself is already confirmed,
	// so a failed clear is logged but does not fail the finish.
	if err := c.deadlines.Clear(ctx, c.student.StudentID, c.examID); err != nil {
		c.log.Error().Err(err).Msg("Deadline clear failed")
	}
	if err := c.ledger.Clear(ctx, c.student.StudentID, c.examID); err != nil {
		c.log.Error().Err(err).Msg("Ledger clear failed")
	}

	c.submitting = false
	c.submitted = true
	c.result = result
	c.log.Info().Int("answered", len(payload.Answers)).Msg("Exam submitted")
	return result, nil
}

// Close tears the session down without submitting: the countdown stops and
// no expiry fires. Persisted state is untouched so a reload resumes cleanly.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown != nil {
		c.countdown.Stop()
	}
}

// Paper returns the loaded question set.
func (c *Controller) Paper() *model.ExamPaper {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paper
}

// Submitted reports whether the session reached a terminal submit.
func (c *Controller) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// State builds the upward-facing snapshot for the navigator UI. Remaining
// seconds are always derived from the fixed end time, clamped at zero once
// finishing has begun.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining int64
	if !c.finishing {
		if r := time.Until(c.end); r > 0 {
			remaining = int64(r.Seconds())
		}
	}

	phase := PhaseActive
	switch {
	case c.submitted:
		phase = PhaseSubmitted
	case c.submitting:
		phase = PhaseSubmitting
	case c.finishing:
		phase = PhaseSubmitFailed
	}

	questions := make([]QuestionStatus, 0, len(c.paper.Questions))
	for _, q := range c.paper.Questions {
		_, answered := c.snapshot.Answers[q.ID]
		questions = append(questions, QuestionStatus{
			QuestionID: q.ID,
			Answered:   answered,
			Flagged:    c.snapshot.IsFlagged(q.ID),
		})
	}

	return State{
		ExamID:           c.examID,
		Phase:            phase,
		RemainingSeconds: remaining,
		CurrentIndex:     c.currentIndex,
		Questions:        questions,
	}
}

func (c *Controller) findQuestion(questionID string) *model.Question {
	for i := range c.paper.Questions {
		if c.paper.Questions[i].ID == questionID {
			return &c.paper.Questions[i]
		}
	}
	return nil
}

func hasOption(q *model.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}
