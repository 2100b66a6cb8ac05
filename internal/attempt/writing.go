package attempt

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

// SubmitWriting appends a draft. Every call creates a new submission; at
// least one of text or file is required.
func (l *Lifecycle) SubmitWriting(ctx context.Context, p Principal, attemptID, text string, file *Upload) (WritingAck, error) {
	if attemptID == "" {
		return WritingAck{}, fieldErrors(map[string]string{"attempt_id": "required"})
	}
	hasFile := file != nil && file.Body != nil
	if strings.TrimSpace(text) == "" && !hasFile {
		return WritingAck{}, invalid("submission_text or file is required", map[string]any{
			"submission_text": "required without file",
			"file":            "required without submission_text",
		})
	}
	cur, err := l.owned(ctx, p, catalog.Writing, attemptID)
	if err != nil {
		return WritingAck{}, err
	}
	if cur.IsCompleted {
		return WritingAck{}, errAlreadyCompleted()
	}

	var key string
	if hasFile {
		if key, err = l.blobs.Put(blobKey("writing", cur.ID, "", file.Filename), file.Body); err != nil {
			return WritingAck{}, errors.Wrap(err, "store writing file")
		}
	}
	var sub Answer
	if _, err := l.update(ctx, p, catalog.Writing, attemptID, func(tx Tx, _ *Attempt) error {
		var err error
		sub, err = tx.AppendSubmission(ctx, Answer{
			SubmissionText: text,
			FileKey:        key,
			CreatedAt:      l.now(),
		})
		return err
	}); err != nil {
		return WritingAck{}, err
	}
	return WritingAck{
		AttemptID:    cur.ID,
		SubmissionID: sub.ID,
		Seq:          sub.Seq,
		FileURL:      l.mediaURL(key),
		Message:      "submission saved",
	}, nil
}

func (l *Lifecycle) WritingResult(ctx context.Context, p Principal, attemptID string) (WritingResult, error) {
	a, err := l.owned(ctx, p, catalog.Writing, attemptID)
	if err != nil {
		return WritingResult{}, err
	}
	act, err := l.activity(ctx, catalog.Writing, a.ActivityID)
	if err != nil {
		return WritingResult{}, err
	}
	subs, err := l.store.ListAnswers(ctx, catalog.Writing, a.ID)
	if err != nil {
		return WritingResult{}, err
	}
	out := WritingResult{
		AttemptID:      a.ID,
		Activity:       l.detail(act),
		IsCompleted:    a.IsCompleted,
		CompletedAt:    a.CompletedAt,
		ElapsedSeconds: a.elapsedSeconds(),
		Score:          a.Score,
		Feedback:       a.Feedback,
		Submissions:    make([]SubmissionResult, 0, len(subs)),
	}
	for _, s := range subs {
		out.Submissions = append(out.Submissions, SubmissionResult{
			ID:             s.ID,
			Seq:            s.Seq,
			SubmissionText: s.SubmissionText,
			FileURL:        l.mediaURL(s.FileKey),
			SubmittedAt:    s.CreatedAt,
		})
	}
	return out, nil
}
