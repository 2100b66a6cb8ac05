package attempt

import "github.com/mind-engage/mindengage-practice/internal/catalog"

// AnswerMode says what a repeated submission does.
type AnswerMode int

const (
	// Overwrite keys answers by (attempt, question); resubmission replaces.
	Overwrite AnswerMode = iota + 1
	// Append keeps every submission (writing drafts).
	Append
)

// CompletionRule is the precondition and effect of an explicit complete call.
type CompletionRule int

const (
	// RecountContent recomputes total questions from current content and the
	// correct count from the ledger. Completing twice is a no-op.
	RecountContent CompletionRule = iota + 1
	// RequireSnapshotAnswered requires answered >= the total snapshotted at start.
	RequireSnapshotAnswered
	// RequireAllAnswered requires every current question to have an answer.
	RequireAllAnswered
	// RequireSubmission requires at least one submission.
	RequireSubmission
)

// Policy captures everything that differs between the activity families.
// Listening and reading intentionally complete under different rules.
type Policy struct {
	Kind Kind
	// SnapshotTotal stores the activity's question count at start.
	SnapshotTotal bool
	// Graded kinds derive correct_answers and score from the ledger.
	Graded bool
	// AutoComplete marks the attempt completed once every question has an answer.
	AutoComplete bool
	Answers      AnswerMode
	Complete     CompletionRule
}

var policies = map[Kind]Policy{
	catalog.Listening: {
		Kind:          catalog.Listening,
		SnapshotTotal: true,
		Graded:        true,
		AutoComplete:  true,
		Answers:       Overwrite,
		Complete:      RecountContent,
	},
	catalog.Reading: {
		Kind:          catalog.Reading,
		SnapshotTotal: true,
		Graded:        true,
		AutoComplete:  true,
		Answers:       Overwrite,
		Complete:      RequireSnapshotAnswered,
	},
	catalog.Speaking: {
		Kind:     catalog.Speaking,
		Answers:  Overwrite,
		Complete: RequireAllAnswered,
	},
	catalog.Writing: {
		Kind:     catalog.Writing,
		Answers:  Append,
		Complete: RequireSubmission,
	},
}

// PolicyFor returns the policy of kind.
func PolicyFor(kind Kind) (Policy, bool) {
	p, ok := policies[kind]
	return p, ok
}
