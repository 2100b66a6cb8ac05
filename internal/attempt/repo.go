package attempt

import (
	"context"
	"time"
)

// Store persists attempts and their answer ledgers, one table family per kind.
type Store interface {
	// StartOrResume returns the student's in-flight attempt for the activity or
	// creates one with the given total. created reports which happened.
	StartOrResume(ctx context.Context, kind Kind, studentID, activityID string, total int, now time.Time) (a Attempt, created bool, err error)
	GetAttempt(ctx context.Context, kind Kind, id string) (Attempt, error)
	// ListAnswers returns the ledger of an attempt: objective and speaking rows
	// in creation order, writing submissions by sequence.
	ListAnswers(ctx context.Context, kind Kind, attemptID string) ([]Answer, error)
	ListAttempts(ctx context.Context, kind Kind, opts ListOpts) ([]Attempt, error)

	// Update runs fn in one transaction with the attempt row locked, then
	// writes the attempt back. If fn fails nothing is persisted.
	Update(ctx context.Context, kind Kind, id string, fn func(tx Tx, a *Attempt) error) (Attempt, error)
}

// Tx is the ledger view available inside Update, bound to one attempt.
type Tx interface {
	// UpsertAnswer writes the answer keyed by (attempt, question).
	UpsertAnswer(ctx context.Context, ans Answer) error
	// AppendSubmission adds a writing submission and assigns its sequence.
	AppendSubmission(ctx context.Context, ans Answer) (Answer, error)
	// Tally counts ledger rows and the correct ones among them.
	Tally(ctx context.Context) (answered, correct int, err error)
	AppendEvent(ctx context.Context, typ string, data any) error
}
