package model

// Snapshot is the persisted ledger state of one exam session: everything the
// student has touched. It is written through on every mutation and is the
// exact record a reload rehydrates from.
type Snapshot struct {
	Answers map[string]string `json:"answers"`
	Flagged []string          `json:"flagged"`
}

// NewSnapshot returns an empty snapshot with non-nil containers.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Answers: make(map[string]string),
		Flagged: []string{},
	}
}

// IsFlagged reports whether a question is marked doubtful.
func (s *Snapshot) IsFlagged(questionID string) bool {
	for _, id := range s.Flagged {
		if id == questionID {
			return true
		}
	}
	return false
}

// SubmissionPayload is what gets sent upstream when a session finishes.
// Only answered questions appear in Answers.
type SubmissionPayload struct {
	StudentID   int               `json:"student_id"`
	StudentName string            `json:"student_name,omitempty"`
	Answers     map[string]string `json:"answers"`
}

// SubmissionResult is the upstream's response to a successful submission.
// The result object is forwarded upward untouched; this service never scores.
type SubmissionResult struct {
	ExamID        string   `json:"exam_id"`
	Score         *float64 `json:"score,omitempty"`
	TotalAnswered int      `json:"total_answered"`
	SubmittedAt   string   `json:"submitted_at,omitempty"`
}

// SetAnswerRequest is the payload for recording one answer.
type SetAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	Answer     string `json:"answer" binding:"required,max=4000"`
}

// ToggleFlagRequest is the payload for flipping a question's doubtful mark.
type ToggleFlagRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
}

// NavigateRequest is the payload for moving the current question pointer.
type NavigateRequest struct {
	Index int `json:"index" binding:"min=0"`
}
