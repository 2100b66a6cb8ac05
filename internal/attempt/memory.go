package attempt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	syncx "github.com/mind-engage/mindengage-practice/internal/sync"
)

// MemoryStore keeps everything in process. Update holds the store lock for
// the whole callback, which serialises writers per store.
type MemoryStore struct {
	mu          sync.RWMutex
	attempts    map[Kind]map[string]Attempt
	answers     map[string]map[string]Answer // attemptID -> questionID -> answer
	submissions map[string][]Answer          // attemptID -> writing submissions
	events      []syncx.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts:    map[Kind]map[string]Attempt{},
		answers:     map[string]map[string]Answer{},
		submissions: map[string][]Answer{},
	}
}

func (m *MemoryStore) StartOrResume(_ context.Context, kind Kind, studentID, activityID string, total int, now time.Time) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts[kind] {
		if a.StudentID == studentID && a.ActivityID == activityID && !a.IsCompleted {
			return a, false, nil
		}
	}
	a := Attempt{
		ID:             uuid.NewString(),
		Kind:           kind,
		StudentID:      studentID,
		ActivityID:     activityID,
		StartedAt:      now,
		TotalQuestions: total,
	}
	if policies[kind].Graded {
		zero := 0.0
		a.Score = &zero
	}
	ev, err := syncx.NewEvent(syncx.AttemptStarted, a.ID, map[string]any{"kind": kind, "student_id": studentID, "activity_id": activityID})
	if err != nil {
		return Attempt{}, false, err
	}
	if m.attempts[kind] == nil {
		m.attempts[kind] = map[string]Attempt{}
	}
	m.attempts[kind][a.ID] = a
	m.events = append(m.events, ev)
	return a, true, nil
}

func (m *MemoryStore) GetAttempt(_ context.Context, kind Kind, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[kind][id]
	if !ok {
		return Attempt{}, notFound("attempt", id)
	}
	return a, nil
}

func (m *MemoryStore) ListAnswers(_ context.Context, kind Kind, attemptID string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if policies[kind].Answers == Append {
		return append([]Answer(nil), m.submissions[attemptID]...), nil
	}
	out := make([]Answer, 0, len(m.answers[attemptID]))
	for _, a := range m.answers[attemptID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListAttempts(_ context.Context, kind Kind, opts ListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts[kind] {
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.ActivityID != "" && a.ActivityID != opts.ActivityID {
			continue
		}
		if opts.Completed != nil && a.IsCompleted != *opts.Completed {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, kind Kind, id string, fn func(Tx, *Attempt) error) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[kind][id]
	if !ok {
		return Attempt{}, notFound("attempt", id)
	}

	// stage ledger writes; they are applied only if fn succeeds
	tx := &memTx{
		attemptID:   id,
		kind:        kind,
		answers:     make(map[string]Answer, len(m.answers[id])),
		submissions: append([]Answer(nil), m.submissions[id]...),
	}
	for k, v := range m.answers[id] {
		tx.answers[k] = v
	}

	cur := a
	if err := fn(tx, &cur); err != nil {
		return Attempt{}, err
	}
	cur.Version = a.Version + 1

	m.attempts[kind][id] = cur
	m.answers[id] = tx.answers
	m.submissions[id] = tx.submissions
	m.events = append(m.events, tx.events...)
	return cur, nil
}

// Events returns a copy of the event log.
func (m *MemoryStore) Events() []syncx.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]syncx.Event(nil), m.events...)
}

type memTx struct {
	attemptID   string
	kind        Kind
	answers     map[string]Answer
	submissions []Answer
	events      []syncx.Event
}

func (t *memTx) UpsertAnswer(_ context.Context, ans Answer) error {
	ans.AttemptID = t.attemptID
	if prev, ok := t.answers[ans.QuestionID]; ok {
		ans.ID = prev.ID
		ans.CreatedAt = prev.CreatedAt
	} else if ans.ID == "" {
		ans.ID = uuid.NewString()
	}
	t.answers[ans.QuestionID] = ans
	return nil
}

func (t *memTx) AppendSubmission(_ context.Context, ans Answer) (Answer, error) {
	ans.AttemptID = t.attemptID
	if ans.ID == "" {
		ans.ID = uuid.NewString()
	}
	ans.Seq = len(t.submissions) + 1
	t.submissions = append(t.submissions, ans)
	return ans, nil
}

func (t *memTx) Tally(context.Context) (int, int, error) {
	if policies[t.kind].Answers == Append {
		return len(t.submissions), 0, nil
	}
	correct := 0
	for _, a := range t.answers {
		if a.IsCorrect {
			correct++
		}
	}
	return len(t.answers), correct, nil
}

func (t *memTx) AppendEvent(_ context.Context, typ string, data any) error {
	ev, err := syncx.NewEvent(typ, t.attemptID, data)
	if err != nil {
		return err
	}
	t.events = append(t.events, ev)
	return nil
}
