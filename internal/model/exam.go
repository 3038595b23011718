package model

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
)

// Option is a single selectable choice of a multiple-choice question.
// IDs are stable across reloads so persisted answers stay valid.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is one entry of an exam paper as served to a student.
// Correct answers never reach this service.
type Question struct {
	ID           string       `json:"id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []Option     `json:"options,omitempty"`
	OrderNum     int          `json:"order_num"`
}

// ExamPaper is the read-only question set fetched from the upstream exam API.
type ExamPaper struct {
	ExamID          string     `json:"exam_id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}

// ExamPeriod is one schedule entry of the student's exam calendar,
// passed through from the upstream API for the lobby view.
type ExamPeriod struct {
	ExamID          string `json:"exam_id"`
	Title           string `json:"title"`
	Subject         string `json:"subject,omitempty"`
	StartsAt        string `json:"starts_at,omitempty"`
	EndsAt          string `json:"ends_at,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status,omitempty"`
}
