package attempt

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/storage"
	syncx "github.com/mind-engage/mindengage-practice/internal/sync"
)

// Lifecycle drives start, submit, complete and result for every activity kind.
// Behaviour that differs between kinds comes from the kind's Policy.
type Lifecycle struct {
	store   Store
	catalog catalog.Catalog
	blobs   storage.BlobStore
	grader  grading.Grader
	log     logrus.FieldLogger
	now     func() time.Time
}

type Option func(*Lifecycle)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

func WithGrader(g grading.Grader) Option {
	return func(l *Lifecycle) { l.grader = g }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Lifecycle) { l.log = log }
}

func NewLifecycle(store Store, cat catalog.Catalog, blobs storage.BlobStore, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:   store,
		catalog: cat,
		blobs:   blobs,
		grader:  grading.NewDefaultGrader(),
		log:     logrus.StandardLogger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Lifecycle) policy(kind Kind) (Policy, error) {
	p, ok := policies[kind]
	if !ok {
		return Policy{}, errors.Wrapf(ErrUnsupported, "kind %q", kind)
	}
	return p, nil
}

func (l *Lifecycle) activity(ctx context.Context, kind Kind, id string) (catalog.Activity, error) {
	act, err := l.catalog.Activity(ctx, kind, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Activity{}, notFound(string(kind)+" activity", id)
	}
	if err != nil {
		return catalog.Activity{}, errors.Wrapf(err, "load %s activity", kind)
	}
	return act, nil
}

func (l *Lifecycle) questions(ctx context.Context, kind Kind, activityID string) ([]catalog.Question, error) {
	qs, err := l.catalog.Questions(ctx, kind, activityID)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s questions", kind)
	}
	return qs, nil
}

// owned loads an attempt and hides attempts of other students behind NotFound.
func (l *Lifecycle) owned(ctx context.Context, p Principal, kind Kind, id string) (Attempt, error) {
	if p.StudentID == "" {
		return Attempt{}, ErrUnauthenticated
	}
	if id == "" {
		return Attempt{}, fieldErrors(map[string]string{"attempt_id": "required"})
	}
	a, err := l.store.GetAttempt(ctx, kind, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.StudentID != p.StudentID {
		return Attempt{}, notFound("attempt", id)
	}
	return a, nil
}

// update wraps Store.Update with the ownership and open-attempt checks, which
// are repeated on the locked row.
func (l *Lifecycle) update(ctx context.Context, p Principal, kind Kind, id string, fn func(Tx, *Attempt) error) (Attempt, error) {
	return l.store.Update(ctx, kind, id, func(tx Tx, a *Attempt) error {
		if a.StudentID != p.StudentID {
			return notFound("attempt", id)
		}
		if a.IsCompleted {
			return errAlreadyCompleted()
		}
		return fn(tx, a)
	})
}

func (l *Lifecycle) mediaURL(key string) string {
	if key == "" || l.blobs == nil {
		return ""
	}
	u, err := l.blobs.SignedURL(key)
	if err != nil {
		l.log.WithError(err).WithField("key", key).Warn("media url")
		return ""
	}
	return u
}

func (l *Lifecycle) detail(act catalog.Activity) ActivityDetail {
	return ActivityDetail{
		ID:           act.ID,
		Title:        act.Title,
		DurationMin:  act.DurationMin,
		Instructions: act.Instructions,
		Passage:      act.Passage,
		Prompt:       act.Prompt,
		MediaURL:     l.mediaURL(act.MediaKey),
	}
}

// Start returns the student's open attempt for the activity, creating it if
// needed. Objective kinds snapshot the current question count.
func (l *Lifecycle) Start(ctx context.Context, p Principal, kind Kind, activityID string) (Started, error) {
	pol, err := l.policy(kind)
	if err != nil {
		return Started{}, err
	}
	if p.StudentID == "" {
		return Started{}, ErrUnauthenticated
	}
	if activityID == "" {
		return Started{}, fieldErrors(map[string]string{string(kind) + "_activity_id": "required"})
	}
	act, err := l.activity(ctx, kind, activityID)
	if err != nil {
		return Started{}, err
	}
	total := 0
	if pol.SnapshotTotal {
		if total, err = l.catalog.CountQuestions(ctx, kind, activityID); err != nil {
			return Started{}, errors.Wrapf(err, "count %s questions", kind)
		}
	}

	a, created, err := l.store.StartOrResume(ctx, kind, p.StudentID, activityID, total, l.now())
	if err != nil {
		return Started{}, err
	}
	if created {
		l.log.WithFields(logrus.Fields{"kind": kind, "attempt_id": a.ID, "student_id": p.StudentID}).Info("attempt started")
	}
	out := Started{
		AttemptID:     a.ID,
		ActivityID:    act.ID,
		ActivityTitle: act.Title,
		StartedAt:     a.StartedAt,
		Resumed:       !created,
	}
	if pol.SnapshotTotal {
		n := a.TotalQuestions
		out.TotalQuestions = &n
	}
	return out, nil
}

// Complete closes an attempt under the kind's completion rule.
func (l *Lifecycle) Complete(ctx context.Context, p Principal, kind Kind, attemptID string) (Completion, error) {
	pol, err := l.policy(kind)
	if err != nil {
		return Completion{}, err
	}
	cur, err := l.owned(ctx, p, kind, attemptID)
	if err != nil {
		return Completion{}, err
	}
	if cur.IsCompleted {
		if pol.Complete == RecountContent {
			out := completion(pol, cur, "attempt already completed")
			out.AlreadyCompleted = true
			return out, nil
		}
		return Completion{}, errAlreadyCompleted()
	}

	// content counts are read before the transaction opens
	contentTotal := -1
	if pol.Complete == RecountContent || pol.Complete == RequireAllAnswered {
		if contentTotal, err = l.catalog.CountQuestions(ctx, kind, cur.ActivityID); err != nil {
			return Completion{}, errors.Wrapf(err, "count %s questions", kind)
		}
	}

	a, err := l.update(ctx, p, kind, attemptID, func(tx Tx, a *Attempt) error {
		answered, correct, err := tx.Tally(ctx)
		if err != nil {
			return err
		}
		switch pol.Complete {
		case RecountContent:
			a.TotalQuestions = contentTotal
			a.CorrectAnswers = correct
			score := grading.Score(correct, contentTotal)
			a.Score = &score
		case RequireSnapshotAnswered:
			if answered < a.TotalQuestions {
				return errIncomplete(answered, a.TotalQuestions)
			}
		case RequireAllAnswered:
			if answered != contentTotal {
				return errIncomplete(answered, contentTotal)
			}
		case RequireSubmission:
			if answered == 0 {
				return invalid("must submit before completing", nil)
			}
		}
		a.markCompleted(l.now())
		return tx.AppendEvent(ctx, syncx.AttemptCompleted, map[string]any{"kind": kind, "student_id": a.StudentID})
	})
	if err != nil {
		return Completion{}, err
	}
	l.log.WithFields(logrus.Fields{"kind": kind, "attempt_id": a.ID, "student_id": p.StudentID}).Info("attempt completed")
	return completion(pol, a, "attempt completed"), nil
}

func completion(pol Policy, a Attempt, msg string) Completion {
	out := Completion{
		AttemptID:   a.ID,
		IsCompleted: a.IsCompleted,
		CompletedAt: a.CompletedAt,
		Message:     msg,
	}
	if pol.Graded {
		total, correct := a.TotalQuestions, a.CorrectAnswers
		score := grading.Score(correct, total)
		out.TotalQuestions, out.CorrectAnswers, out.Score = &total, &correct, &score
	}
	return out
}

// History lists the principal's attempts of one kind, newest first.
func (l *Lifecycle) History(ctx context.Context, p Principal, kind Kind, opts ListOpts) ([]Attempt, error) {
	if _, err := l.policy(kind); err != nil {
		return nil, err
	}
	if p.StudentID == "" {
		return nil, ErrUnauthenticated
	}
	opts.StudentID = p.StudentID
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	out, err := l.store.ListAttempts(ctx, kind, opts)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Attempt{}
	}
	return out, nil
}

// AssignGrade stores an externally produced score and feedback on a completed
// speaking or writing attempt. Callers are checked for the grading permission
// before this is reached, so ownership does not apply.
func (l *Lifecycle) AssignGrade(ctx context.Context, p Principal, kind Kind, attemptID string, score float64, feedback string) (Attempt, error) {
	pol, err := l.policy(kind)
	if err != nil {
		return Attempt{}, err
	}
	if pol.Graded {
		return Attempt{}, errors.Wrapf(ErrUnsupported, "%s attempts are scored automatically", kind)
	}
	if p.StudentID == "" {
		return Attempt{}, ErrUnauthenticated
	}
	if score < 0 {
		return Attempt{}, fieldErrors(map[string]string{"score": "must be non-negative"})
	}
	a, err := l.store.Update(ctx, kind, attemptID, func(tx Tx, a *Attempt) error {
		if !a.IsCompleted {
			return invalid("attempt is not completed", nil)
		}
		s := score
		a.Score = &s
		if feedback != "" {
			f := feedback
			a.Feedback = &f
		}
		return tx.AppendEvent(ctx, syncx.AttemptGraded, map[string]any{"kind": kind, "grader": p.StudentID, "score": score})
	})
	if err != nil {
		return Attempt{}, err
	}
	l.log.WithFields(logrus.Fields{"kind": kind, "attempt_id": a.ID, "grader": p.StudentID}).Info("attempt graded")
	return a, nil
}
