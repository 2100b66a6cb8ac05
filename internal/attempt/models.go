package attempt

import (
	"io"
	"time"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

type Kind = catalog.Kind

// Principal is the authenticated caller, passed explicitly into every
// lifecycle operation.
type Principal struct {
	StudentID string
	Role      string
}

// Attempt is one student's try at one activity. Objective kinds derive
// CorrectAnswers and Score from the answer ledger; subjective kinds get Score
// and Feedback from an external grader.
type Attempt struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	StudentID      string     `json:"student_id"`
	ActivityID     string     `json:"activity_id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	IsCompleted    bool       `json:"is_completed"`
	TotalQuestions int        `json:"total_questions"`
	CorrectAnswers int        `json:"correct_answers"`
	Score          *float64   `json:"score"`
	Feedback       *string    `json:"feedback"`
	Version        int64      `json:"-"`
}

// markCompleted sets the completion fields once.
func (a *Attempt) markCompleted(now time.Time) {
	if a.IsCompleted {
		return
	}
	a.IsCompleted = true
	t := now
	a.CompletedAt = &t
}

// elapsedSeconds is nil until the attempt is completed.
func (a Attempt) elapsedSeconds() *int64 {
	if !a.IsCompleted || a.CompletedAt == nil {
		return nil
	}
	s := int64(a.CompletedAt.Sub(a.StartedAt) / time.Second)
	if s < 0 {
		s = 0
	}
	return &s
}

// Answer is one ledger row. Which fields are meaningful depends on the kind:
// SelectedAnswer/IsCorrect for listening and reading, AudioKey/Transcript for
// speaking, SubmissionText/FileKey/Seq for writing.
type Answer struct {
	ID         string
	AttemptID  string
	QuestionID string

	SelectedAnswer string
	IsCorrect      bool

	AudioKey   string
	Transcript *string

	SubmissionText string
	FileKey        string
	Seq            int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnswerInput is one entry of an objective batch submission.
type AnswerInput struct {
	QuestionID     string `json:"question_id" validate:"required"`
	SelectedAnswer string `json:"selected_answer"`
}

// Upload is a media file received from the client.
type Upload struct {
	Filename string
	Body     io.Reader
}

type ListOpts struct {
	StudentID  string
	ActivityID string
	Completed  *bool
	Limit      int
	Offset     int
}

// --- operation outputs ---

type Started struct {
	AttemptID      string    `json:"attempt_id"`
	ActivityID     string    `json:"activity_id"`
	ActivityTitle  string    `json:"activity_title"`
	TotalQuestions *int      `json:"total_questions,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	Resumed        bool      `json:"resumed"`
}

type Progress struct {
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	CurrentScore   float64 `json:"current_score"`
	IsCompleted    bool    `json:"is_completed"`
}

type Completion struct {
	AttemptID        string     `json:"attempt_id"`
	IsCompleted      bool       `json:"is_completed"`
	CompletedAt      *time.Time `json:"completed_at"`
	TotalQuestions   *int       `json:"total_questions,omitempty"`
	CorrectAnswers   *int       `json:"correct_answers,omitempty"`
	Score            *float64   `json:"score,omitempty"`
	AlreadyCompleted bool       `json:"already_completed,omitempty"`
	Message          string     `json:"message"`
}

type SpeakingAck struct {
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	AudioURL   string `json:"audio_url"`
	Message    string `json:"message"`
}

type WritingAck struct {
	AttemptID    string `json:"attempt_id"`
	SubmissionID string `json:"submission_id"`
	Seq          int    `json:"seq"`
	FileURL      string `json:"file_url,omitempty"`
	Message      string `json:"message"`
}

type ActivityDetail struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	DurationMin  int    `json:"duration_min"`
	Instructions string `json:"instructions,omitempty"`
	Passage      string `json:"passage,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	MediaURL     string `json:"media_url,omitempty"`
}

type PartRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	AudioURL string `json:"audio_url,omitempty"`
}

type QuestionResult struct {
	QuestionID     string   `json:"question_id"`
	Position       int      `json:"position"`
	Type           string   `json:"type"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correct_answer"`
	SelectedAnswer *string  `json:"selected_answer"`
	IsCorrect      bool     `json:"is_correct"`
	Part           *PartRef `json:"part,omitempty"`
}

type ObjectiveResult struct {
	AttemptID      string           `json:"attempt_id"`
	Kind           Kind             `json:"kind"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at"`
	IsCompleted    bool             `json:"is_completed"`
	TotalQuestions int              `json:"total_questions"`
	CorrectAnswers int              `json:"correct_answers"`
	Score          float64          `json:"score"`
	ElapsedSeconds *int64           `json:"elapsed_seconds"`
	Activity       ActivityDetail   `json:"activity"`
	Questions      []QuestionResult `json:"questions"`
}

type SpeakingAnswerResult struct {
	QuestionID   string    `json:"question_id"`
	QuestionText string    `json:"question_text"`
	AudioURL     string    `json:"audio_url"`
	Transcript   *string   `json:"transcript"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type SpeakingResult struct {
	AttemptID      string                 `json:"attempt_id"`
	ActivityTitle  string                 `json:"activity_title"`
	IsCompleted    bool                   `json:"is_completed"`
	CompletedAt    *time.Time             `json:"completed_at"`
	ElapsedSeconds *int64                 `json:"elapsed_seconds"`
	Score          *float64               `json:"score"`
	Feedback       *string                `json:"feedback"`
	Answers        []SpeakingAnswerResult `json:"answers"`
}

type SubmissionResult struct {
	ID             string    `json:"id"`
	Seq            int       `json:"seq"`
	SubmissionText string    `json:"submission_text,omitempty"`
	FileURL        string    `json:"file_url,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type WritingResult struct {
	AttemptID      string             `json:"attempt_id"`
	Activity       ActivityDetail     `json:"activity"`
	IsCompleted    bool               `json:"is_completed"`
	CompletedAt    *time.Time         `json:"completed_at"`
	ElapsedSeconds *int64             `json:"elapsed_seconds"`
	Score          *float64           `json:"score"`
	Feedback       *string            `json:"feedback"`
	Submissions    []SubmissionResult `json:"submissions"`
}
