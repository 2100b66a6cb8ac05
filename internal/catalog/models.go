package catalog

import (
	"context"

	"github.com/pkg/errors"
)

// Kind names one of the four activity families.
type Kind string

const (
	Listening Kind = "listening"
	Reading   Kind = "reading"
	Speaking  Kind = "speaking"
	Writing   Kind = "writing"
)

// Kinds lists every activity family in display order.
var Kinds = []Kind{Listening, Reading, Speaking, Writing}

func (k Kind) Valid() bool {
	switch k {
	case Listening, Reading, Speaking, Writing:
		return true
	}
	return false
}

// Objective kinds carry machine-gradable questions.
func (k Kind) Objective() bool { return k == Listening || k == Reading }

var ErrNotFound = errors.New("not found")

type Activity struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	TaskID       string `json:"task_id,omitempty"`
	Title        string `json:"title"`
	DurationMin  int    `json:"duration_min"`
	Instructions string `json:"instructions,omitempty"`
	Passage      string `json:"passage,omitempty"` // reading
	Prompt       string `json:"prompt,omitempty"`  // writing
	MediaKey     string `json:"media_key,omitempty"`
}

// Part is a listening-only subdivision with its own audio.
type Part struct {
	ID         string `json:"id"`
	ActivityID string `json:"activity_id"`
	Position   int    `json:"position"`
	Title      string `json:"title"`
	AudioKey   string `json:"audio_key,omitempty"`
}

type Question struct {
	ID         string   `json:"id"`
	ActivityID string   `json:"activity_id"`
	PartID     string   `json:"part_id,omitempty"` // listening
	Position   int      `json:"position"`
	Type       string   `json:"type"` // mcq, true_false, note_completion, ... (informational)
	Text       string   `json:"text"`
	Options    []string `json:"options,omitempty"` // up to four
	Correct    string   `json:"correct_answer,omitempty"`
	BundleID   string   `json:"bundle_id,omitempty"`
}

// Catalog is the read-only view of activity content used during attempts.
type Catalog interface {
	Activity(ctx context.Context, kind Kind, id string) (Activity, error)
	// Parts returns a listening activity's parts in position order.
	Parts(ctx context.Context, activityID string) ([]Part, error)
	// Questions returns an activity's questions in display order. For listening
	// that is part position, then question position.
	Questions(ctx context.Context, kind Kind, activityID string) ([]Question, error)
	CountQuestions(ctx context.Context, kind Kind, activityID string) (int, error)
}
