package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/config"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/model"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/storage"
)

// fakeAPI implements ExamAPI for controller tests, counting submissions.
type fakeAPI struct {
	mu          sync.Mutex
	paper       *model.ExamPaper
	fetchErr    error
	submitErr   error
	submitDelay time.Duration
	submits     int
	lastPayload *model.SubmissionPayload
}

func (f *fakeAPI) FetchExam(context.Context, string, string) (*model.ExamPaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.paper, nil
}

func (f *fakeAPI) SubmitExam(_ context.Context, _, _ string, payload *model.SubmissionPayload) (*model.SubmissionResult, error) {
	f.mu.Lock()
	delay := f.submitDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submits++
	f.lastPayload = payload
	return &model.SubmissionResult{
		ExamID:        "exam-1",
		TotalAnswered: len(payload.Answers),
	}, nil
}

func (f *fakeAPI) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func testPaper() *model.ExamPaper {
	return &model.ExamPaper{
		ExamID:          "exam-1",
		Title:           "Tryout UTBK",
		DurationMinutes: 30,
		Questions: []model.Question{
			{
				ID:           "q1",
				QuestionText: "1 + 1 = ?",
				QuestionType: model.QuestionTypeMultipleChoice,
				Options: []model.Option{
					{ID: "A", Text: "1"},
					{ID: "B", Text: "2"},
					{ID: "C", Text: "3"},
				},
				OrderNum: 1,
			},
			{
				ID:           "q2",
				QuestionText: "2 + 2 = ?",
				QuestionType: model.QuestionTypeMultipleChoice,
				Options: []model.Option{
					{ID: "A", Text: "3"},
					{ID: "B", Text: "4"},
				},
				OrderNum: 2,
			},
			{
				ID:           "q3",
				QuestionText: "Jelaskan jawabanmu.",
				QuestionType: model.QuestionTypeShortAnswer,
				OrderNum:     3,
			},
		},
	}
}

func testIdentity() Identity {
	return Identity{StudentID: 7, Name: "Siswa Uji", Token: "token-7"}
}

func newTestController(t *testing.T, api *fakeAPI, kv storage.KV) *Controller {
	t.Helper()
	log := zerolog.Nop()
	ctrl := NewController(api, NewDeadlineStore(kv, log), NewLedger(kv, log), log, testIdentity(), "exam-1")
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestStartLoadFailureIsFatal(t *testing.T) {
	api := &fakeAPI{fetchErr: errors.New("connection refused")}
	kv := storage.NewMemory()
	ctrl := newTestController(t, api, kv)

	if err := ctrl.Start(context.Background()); err == nil {
		t.Fatalf("expected load failure")
	}

	// An abandoned load must not establish anything durable.
	if _, err := kv.Get(context.Background(), config.StorageKey.SessionDeadlineKey(7, "exam-1")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deadline persisted despite load failure: %v", err)
	}
}

func TestStartMissingDurationIsFatal(t *testing.T) {
	paper := testPaper()
	paper.DurationMinutes = 0
	api := &fakeAPI{paper: paper}
	ctrl := newTestController(t, api, storage.NewMemory())

	if err := ctrl.Start(context.Background()); err == nil {
		t.Fatalf("expected missing duration to fail the load")
	}
}

func TestReloadRestoresAnswersFlagsAndDeadline(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper()}
	kv := storage.NewMemory()

	ctrl := newTestController(t, api, kv)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.Answer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := ctrl.ToggleFlag(ctx, "q3"); err != nil {
		t.Fatalf("flag: %v", err)
	}
	ctrl.Close()

	// Reload: fresh controller over the same storage.
	ctrl2 := newTestController(t, api, kv)
	if err := ctrl2.Start(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}

	st := ctrl2.State()
	if st.RemainingSeconds > 30*60 {
		t.Fatalf("remaining %ds exceeds the 30min duration", st.RemainingSeconds)
	}
	if st.RemainingSeconds <= 29*60 {
		t.Fatalf("remaining %ds suggests the deadline was recomputed or lost", st.RemainingSeconds)
	}

	ctrl2.mu.Lock()
	got := ctrl2.snapshot.Answers["q1"]
	flagged := ctrl2.snapshot.IsFlagged("q3")
	ctrl2.mu.Unlock()
	if got != "B" {
		t.Fatalf("expected q1=B after reload, got %q", got)
	}
	if !flagged {
		t.Fatalf("expected q3 still flagged after reload")
	}

	for _, q := range st.Questions {
		switch q.QuestionID {
		case "q1":
			if !q.Answered {
				t.Fatalf("q1 should report answered")
			}
		case "q3":
			if !q.Flagged {
				t.Fatalf("q3 should report flagged")
			}
		}
	}
}

func TestAnswerValidation(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper()}
	ctrl := newTestController(t, api, storage.NewMemory())
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := ctrl.Answer(ctx, "q99", "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
	if _, err := ctrl.Answer(ctx, "q1", "Z"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	// Short answers are free text.
	if _, err := ctrl.Answer(ctx, "q3", "karena dua ditambah dua"); err != nil {
		t.Fatalf("short answer rejected: %v", err)
	}
}

func TestNavigateBounds(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper()}
	ctrl := newTestController(t, api, storage.NewMemory())
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := ctrl.Navigate(2); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if st := ctrl.State(); st.CurrentIndex != 2 {
		t.Fatalf("expected index 2, got %d", st.CurrentIndex)
	}
	if err := ctrl.Navigate(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := ctrl.Navigate(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestFinishSubmitsOnlyAnsweredQuestionsAndClears(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper()}
	kv := storage.NewMemory()
	ctrl := newTestController(t, api, kv)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.Answer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	result, err := ctrl.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.TotalAnswered != 1 {
		t.Fatalf("expected 1 answered, got %d", result.TotalAnswered)
	}

	api.mu.Lock()
	payload := api.lastPayload
	api.mu.Unlock()
	if len(payload.Answers) != 1 {
		t.Fatalf("payload must contain only answered questions, got %v", payload.Answers)
	}
	if _, ok := payload.Answers["q2"]; ok {
		t.Fatalf("unanswered q2 present in payload")
	}
	if payload.StudentID != 7 {
		t.Fatalf("expected student identity on payload, got %d", payload.StudentID)
	}

	// Both stores cleared on the terminal outcome.
	if _, err := kv.Get(ctx, config.StorageKey.SessionDeadlineKey(7, "exam-1")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deadline not cleared: %v", err)
	}
	if _, err := kv.Get(ctx, config.StorageKey.SessionLedgerKey(7, "exam-1")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ledger not cleared: %v", err)
	}
}

func TestFinishFailurePreservesStateAndAllowsRetry(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper(), submitErr: errors.New("gateway timeout")}
	kv := storage.NewMemory()
	ctrl := newTestController(t, api, kv)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.Answer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if _, err := ctrl.Finish(ctx); err == nil {
		t.Fatalf("expected submit failure")
	}

	// Everything persisted must survive the failure.
	if _, err := kv.Get(ctx, config.StorageKey.SessionDeadlineKey(7, "exam-1")); err != nil {
		t.Fatalf("deadline lost on failed submit: %v", err)
	}
	if _, err := kv.Get(ctx, config.StorageKey.SessionLedgerKey(7, "exam-1")); err != nil {
		t.Fatalf("ledger lost on failed submit: %v", err)
	}

	// Edits stay rejected — finishing froze the session.
	if _, err := ctrl.Answer(ctx, "q2", "A"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after finish began, got %v", err)
	}
	if st := ctrl.State(); st.RemainingSeconds != 0 || st.Phase != PhaseSubmitFailed {
		t.Fatalf("expected frozen SUBMIT_FAILED state, got %+v", st)
	}

	// Manual retry with the same answers succeeds.
	api.mu.Lock()
	api.submitErr = nil
	api.mu.Unlock()

	result, err := ctrl.Finish(ctx)
	if err != nil {
		t.Fatalf("retry finish: %v", err)
	}
	if result.TotalAnswered != 1 {
		t.Fatalf("retry lost answers: %+v", result)
	}
	if api.submitCount() != 1 {
		t.Fatalf("expected exactly 1 successful submit, got %d", api.submitCount())
	}
}

func TestConcurrentFinishAndExpirySubmitOnce(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper(), submitDelay: 30 * time.Millisecond}
	ctrl := newTestController(t, api, storage.NewMemory())
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Manual finish and timer expiry racing on the same instant: whichever
	// wins, exactly one submission goes upstream.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctrl.onExpire()
	}()
	go func() {
		defer wg.Done()
		_, _ = ctrl.Finish(ctx)
	}()
	wg.Wait()

	if api.submitCount() != 1 {
		t.Fatalf("expected exactly 1 submit, got %d", api.submitCount())
	}
	if !ctrl.Submitted() {
		t.Fatalf("controller should be in submitted state")
	}

	// A late manual click is a no-op returning the stored result.
	result, err := ctrl.Finish(ctx)
	if err != nil {
		t.Fatalf("post-submit finish: %v", err)
	}
	if result == nil {
		t.Fatalf("expected stored result on repeat finish")
	}
	if api.submitCount() != 1 {
		t.Fatalf("repeat finish resubmitted: %d", api.submitCount())
	}
}

func TestExpiryAutoSubmits(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{paper: testPaper()}
	kv := storage.NewMemory()
	ctrl := newTestController(t, api, kv)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.Answer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// Force the countdown onto an already-passed deadline.
	ctrl.mu.Lock()
	ctrl.countdown.Stop()
	ctrl.countdown = NewCountdown(time.Now().Add(10*time.Millisecond), ctrl.onExpire)
	ctrl.countdown.interval = 2 * time.Millisecond
	ctrl.countdown.Start()
	ctrl.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for !ctrl.Submitted() {
		if time.Now().After(deadline) {
			t.Fatalf("expiry never submitted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if api.submitCount() != 1 {
		t.Fatalf("expected exactly 1 auto-submit, got %d", api.submitCount())
	}
	if _, err := kv.Get(ctx, config.StorageKey.SessionLedgerKey(7, "exam-1")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ledger not cleared after auto-submit: %v", err)
	}
}
