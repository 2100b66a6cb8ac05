package attempt

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
)

// SubmitAnswers grades and upserts a batch of listening or reading answers.
// Every question is resolved before anything is written, so a batch either
// applies in full or not at all.
func (l *Lifecycle) SubmitAnswers(ctx context.Context, p Principal, kind Kind, attemptID string, answers []AnswerInput) (Progress, error) {
	pol, err := l.policy(kind)
	if err != nil {
		return Progress{}, err
	}
	if !pol.Graded {
		return Progress{}, errors.Wrapf(ErrUnsupported, "%s answers", kind)
	}
	cur, err := l.owned(ctx, p, kind, attemptID)
	if err != nil {
		return Progress{}, err
	}
	if cur.IsCompleted {
		return Progress{}, errAlreadyCompleted()
	}
	if len(answers) == 0 {
		return Progress{}, fieldErrors(map[string]string{"answers": "must be a non-empty list"})
	}

	qs, err := l.questions(ctx, kind, cur.ActivityID)
	if err != nil {
		return Progress{}, err
	}
	byID := make(map[string]catalog.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	now := l.now()
	rows := make([]Answer, 0, len(answers))
	for _, in := range answers {
		if in.QuestionID == "" {
			return Progress{}, fieldErrors(map[string]string{"answers": "question_id is required"})
		}
		q, ok := byID[in.QuestionID]
		if !ok {
			return Progress{}, notFound("question", in.QuestionID)
		}
		res := l.grader.Grade(ctx, grading.Q{Type: q.Type, Correct: q.Correct}, in.SelectedAnswer)
		rows = append(rows, Answer{
			QuestionID:     q.ID,
			SelectedAnswer: in.SelectedAnswer,
			IsCorrect:      res.Correct,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	a, err := l.update(ctx, p, kind, attemptID, func(tx Tx, a *Attempt) error {
		for _, r := range rows {
			if err := tx.UpsertAnswer(ctx, r); err != nil {
				return err
			}
		}
		answered, correct, err := tx.Tally(ctx)
		if err != nil {
			return err
		}
		a.CorrectAnswers = correct
		score := grading.Score(correct, a.TotalQuestions)
		a.Score = &score
		if pol.AutoComplete && a.TotalQuestions > 0 && answered >= a.TotalQuestions {
			a.markCompleted(now)
		}
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		TotalQuestions: a.TotalQuestions,
		CorrectAnswers: a.CorrectAnswers,
		CurrentScore:   grading.Score(a.CorrectAnswers, a.TotalQuestions),
		IsCompleted:    a.IsCompleted,
	}, nil
}

// ObjectiveResult returns the attempt with a per-question breakdown over
// every question of the activity, including the correct answers.
func (l *Lifecycle) ObjectiveResult(ctx context.Context, p Principal, kind Kind, attemptID string) (ObjectiveResult, error) {
	pol, err := l.policy(kind)
	if err != nil {
		return ObjectiveResult{}, err
	}
	if !pol.Graded {
		return ObjectiveResult{}, errors.Wrapf(ErrUnsupported, "%s result", kind)
	}
	a, err := l.owned(ctx, p, kind, attemptID)
	if err != nil {
		return ObjectiveResult{}, err
	}
	act, err := l.activity(ctx, kind, a.ActivityID)
	if err != nil {
		return ObjectiveResult{}, err
	}
	qs, err := l.questions(ctx, kind, a.ActivityID)
	if err != nil {
		return ObjectiveResult{}, err
	}
	ledger, err := l.store.ListAnswers(ctx, kind, a.ID)
	if err != nil {
		return ObjectiveResult{}, err
	}
	byQuestion := make(map[string]Answer, len(ledger))
	for _, ans := range ledger {
		byQuestion[ans.QuestionID] = ans
	}

	parts := map[string]*PartRef{}
	if kind == catalog.Listening {
		ps, err := l.catalog.Parts(ctx, a.ActivityID)
		if err != nil {
			return ObjectiveResult{}, errors.Wrap(err, "load listening parts")
		}
		for _, pt := range ps {
			parts[pt.ID] = &PartRef{ID: pt.ID, Title: pt.Title, AudioURL: l.mediaURL(pt.AudioKey)}
		}
	}

	out := ObjectiveResult{
		AttemptID:      a.ID,
		Kind:           kind,
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
		IsCompleted:    a.IsCompleted,
		TotalQuestions: a.TotalQuestions,
		CorrectAnswers: a.CorrectAnswers,
		Score:          grading.Score(a.CorrectAnswers, a.TotalQuestions),
		ElapsedSeconds: a.elapsedSeconds(),
		Activity:       l.detail(act),
		Questions:      make([]QuestionResult, 0, len(qs)),
	}
	for _, q := range qs {
		qr := QuestionResult{
			QuestionID:    q.ID,
			Position:      q.Position,
			Type:          q.Type,
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.Correct,
			Part:          parts[q.PartID],
		}
		if qr.Options == nil {
			qr.Options = []string{}
		}
		if ans, ok := byQuestion[q.ID]; ok {
			sel := ans.SelectedAnswer
			qr.SelectedAnswer = &sel
			qr.IsCorrect = ans.IsCorrect
		}
		out.Questions = append(out.Questions, qr)
	}
	return out, nil
}
