package attempt

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

// SubmitSpeaking stores a recording for one question. Re-recording replaces
// the previous take and clears its transcript.
func (l *Lifecycle) SubmitSpeaking(ctx context.Context, p Principal, attemptID, questionID string, audio *Upload) (SpeakingAck, error) {
	missing := map[string]string{}
	if attemptID == "" {
		missing["attempt_id"] = "required"
	}
	if questionID == "" {
		missing["question_id"] = "required"
	}
	if audio == nil || audio.Body == nil {
		missing["audio_file"] = "required"
	}
	if len(missing) > 0 {
		return SpeakingAck{}, fieldErrors(missing)
	}

	cur, err := l.owned(ctx, p, catalog.Speaking, attemptID)
	if err != nil {
		return SpeakingAck{}, err
	}
	if cur.IsCompleted {
		return SpeakingAck{}, errAlreadyCompleted()
	}
	qs, err := l.questions(ctx, catalog.Speaking, cur.ActivityID)
	if err != nil {
		return SpeakingAck{}, err
	}
	if !containsQuestion(qs, questionID) {
		return SpeakingAck{}, notFound("question", questionID)
	}

	key, err := l.blobs.Put(blobKey("speaking", cur.ID, questionID, audio.Filename), audio.Body)
	if err != nil {
		return SpeakingAck{}, errors.Wrap(err, "store audio")
	}
	now := l.now()
	if _, err := l.update(ctx, p, catalog.Speaking, attemptID, func(tx Tx, _ *Attempt) error {
		return tx.UpsertAnswer(ctx, Answer{
			QuestionID: questionID,
			AudioKey:   key,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}); err != nil {
		return SpeakingAck{}, err
	}
	return SpeakingAck{
		AttemptID:  cur.ID,
		QuestionID: questionID,
		AudioURL:   l.mediaURL(key),
		Message:    "answer submitted",
	}, nil
}

func (l *Lifecycle) SpeakingResult(ctx context.Context, p Principal, attemptID string) (SpeakingResult, error) {
	a, err := l.owned(ctx, p, catalog.Speaking, attemptID)
	if err != nil {
		return SpeakingResult{}, err
	}
	act, err := l.activity(ctx, catalog.Speaking, a.ActivityID)
	if err != nil {
		return SpeakingResult{}, err
	}
	qs, err := l.questions(ctx, catalog.Speaking, a.ActivityID)
	if err != nil {
		return SpeakingResult{}, err
	}
	ledger, err := l.store.ListAnswers(ctx, catalog.Speaking, a.ID)
	if err != nil {
		return SpeakingResult{}, err
	}
	text := make(map[string]string, len(qs))
	for _, q := range qs {
		text[q.ID] = q.Text
	}

	out := SpeakingResult{
		AttemptID:      a.ID,
		ActivityTitle:  act.Title,
		IsCompleted:    a.IsCompleted,
		CompletedAt:    a.CompletedAt,
		ElapsedSeconds: a.elapsedSeconds(),
		Score:          a.Score,
		Feedback:       a.Feedback,
		Answers:        make([]SpeakingAnswerResult, 0, len(ledger)),
	}
	for _, ans := range ledger {
		out.Answers = append(out.Answers, SpeakingAnswerResult{
			QuestionID:   ans.QuestionID,
			QuestionText: text[ans.QuestionID],
			AudioURL:     l.mediaURL(ans.AudioKey),
			Transcript:   ans.Transcript,
			SubmittedAt:  ans.UpdatedAt,
		})
	}
	return out, nil
}

func containsQuestion(qs []catalog.Question, id string) bool {
	for _, q := range qs {
		if q.ID == id {
			return true
		}
	}
	return false
}

// blobKey builds kind/attempt[/question]/<uuid><ext>. Client file names only
// contribute their extension.
func blobKey(kind, attemptID, questionID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	name := uuid.NewString() + ext
	if questionID == "" {
		return path.Join(kind, attemptID, name)
	}
	return path.Join(kind, attemptID, questionID, name)
}
