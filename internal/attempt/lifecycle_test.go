package attempt_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-practice/internal/attempt"
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/db"
	"github.com/mind-engage/mindengage-practice/internal/storage"
	syncx "github.com/mind-engage/mindengage-practice/internal/sync"
)

const contentJSON = `{
  "listening": [{
    "id": "la1", "title": "Listening One", "media_key": "listening/la1.png",
    "parts": [
      {"id": "p1", "position": 1, "title": "Part 1", "audio_key": "listening/p1.mp3",
       "questions": [
         {"id": "lq1", "type": "mcq", "options": ["Paris", "Rome"], "correct_answer": "Paris"},
         {"id": "lq2", "type": "true_false", "correct_answer": "true"}
       ]},
      {"id": "p2", "position": 2, "title": "Part 2",
       "questions": [{"id": "lq3", "type": "note_completion", "correct_answer": "Smith"}]}
    ]
  }],
  "reading": [{
    "id": "ra1", "title": "Reading One", "passage": "text",
    "questions": [
      {"id": "Q1", "type": "true_false", "correct_answer": "true"},
      {"id": "Q2", "type": "true_false", "correct_answer": "false"}
    ]
  }],
  "speaking": [{
    "id": "sa1", "title": "Speaking One",
    "questions": [{"id": "sq1", "text": "Describe your home"}, {"id": "sq2", "text": "Describe your town"}]
  }],
  "writing": [{"id": "wa1", "title": "Writing One", "prompt": "Discuss"}]
}`

// shiftCatalog lets a test change the reported question count after start.
type shiftCatalog struct {
	catalog.Catalog
	extra atomic.Int64
}

func (c *shiftCatalog) CountQuestions(ctx context.Context, kind catalog.Kind, id string) (int, error) {
	n, err := c.Catalog.CountQuestions(ctx, kind, id)
	return n + int(c.extra.Load()), err
}

type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type env struct {
	lc    *attempt.Lifecycle
	store attempt.Store
	cat   *shiftCatalog
	log   *test.Hook
}

func envs(t *testing.T) map[string]env {
	t.Helper()
	ctx := context.Background()
	bundle, err := catalog.DecodeBundle(strings.NewReader(contentJSON))
	require.NoError(t, err)

	h, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	require.NoError(t, catalog.Import(ctx, h, bundle))

	build := func(store attempt.Store, cat catalog.Catalog) env {
		blobs, err := storage.NewFSStore(t.TempDir(), "http://media.test")
		require.NoError(t, err)
		logger, hook := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		sc := &shiftCatalog{Catalog: cat}
		c := &clock{cur: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
		lc := attempt.NewLifecycle(store, sc, blobs, attempt.WithClock(c.now), attempt.WithLogger(logger))
		return env{lc: lc, store: store, cat: sc, log: hook}
	}
	return map[string]env{
		"memory": build(attempt.NewMemoryStore(), catalog.NewMemoryCatalog(bundle)),
		"sqlite": build(attempt.NewSQLStore(h, db.DriverSQLite), catalog.NewSQLCatalog(h)),
	}
}

var (
	alice = attempt.Principal{StudentID: "alice", Role: "student"}
	bob   = attempt.Principal{StudentID: "bob", Role: "student"}
)

func each(t *testing.T, fn func(t *testing.T, e env)) {
	for name, e := range envs(t) {
		e := e
		t.Run(name, func(t *testing.T) { fn(t, e) })
	}
}

func isValidation(t *testing.T, err error, msg string) *attempt.ValidationError {
	t.Helper()
	ve, ok := attempt.IsValidation(err)
	require.True(t, ok, "want validation error, got %v", err)
	if msg != "" {
		assert.Contains(t, ve.Msg, msg)
	}
	return ve
}

func TestStart_Idempotent(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		first, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
		require.NoError(t, err)
		require.NotNil(t, first.TotalQuestions)
		assert.Equal(t, 2, *first.TotalQuestions)
		assert.False(t, first.Resumed)
		assert.Equal(t, "Reading One", first.ActivityTitle)

		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Reading, first.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "Q1", SelectedAnswer: "true"}})
		require.NoError(t, err)

		again, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
		require.NoError(t, err)
		assert.Equal(t, first.AttemptID, again.AttemptID)
		assert.True(t, again.Resumed)

		a, err := e.store.GetAttempt(ctx, catalog.Reading, first.AttemptID)
		require.NoError(t, err)
		assert.Equal(t, 1, a.CorrectAnswers)

		other, err := e.lc.Start(ctx, bob, catalog.Reading, "ra1")
		require.NoError(t, err)
		assert.NotEqual(t, first.AttemptID, other.AttemptID)
	})
}

func TestStart_Errors(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		_, err := e.lc.Start(ctx, alice, catalog.Reading, "missing")
		assert.True(t, errors.Is(err, attempt.ErrNotFound))

		// activity ids are scoped to their kind
		_, err = e.lc.Start(ctx, alice, catalog.Listening, "ra1")
		assert.True(t, errors.Is(err, attempt.ErrNotFound))

		_, err = e.lc.Start(ctx, attempt.Principal{}, catalog.Reading, "ra1")
		assert.True(t, errors.Is(err, attempt.ErrUnauthenticated))

		_, err = e.lc.Start(ctx, alice, catalog.Reading, "")
		ve := isValidation(t, err, "")
		assert.Contains(t, ve.Detail, "reading_activity_id")

		_, err = e.lc.Start(ctx, alice, catalog.Kind("maths"), "x")
		assert.True(t, errors.Is(err, attempt.ErrUnsupported))
	})
}

func TestSubmit_OverwriteNotDuplicate(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Listening, "la1")
		require.NoError(t, err)

		p, err := e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "lq1", SelectedAnswer: "Rome"}})
		require.NoError(t, err)
		assert.Equal(t, 0, p.CorrectAnswers)

		p, err = e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "lq1", SelectedAnswer: "Paris"}})
		require.NoError(t, err)
		assert.Equal(t, 1, p.CorrectAnswers)
		assert.InDelta(t, 100.0/3, p.CurrentScore, 1e-9)
		assert.False(t, p.IsCompleted)

		ledger, err := e.store.ListAnswers(ctx, catalog.Listening, st.AttemptID)
		require.NoError(t, err)
		require.Len(t, ledger, 1)
		assert.Equal(t, "Paris", ledger[0].SelectedAnswer)
		assert.True(t, ledger[0].IsCorrect)
	})
}

func TestSubmit_ScoreMatchesLedger(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Listening, "la1")
		require.NoError(t, err)

		batches := [][]attempt.AnswerInput{
			{{QuestionID: "lq1", SelectedAnswer: "Paris"}, {QuestionID: "lq2", SelectedAnswer: "false"}},
			{{QuestionID: "lq2", SelectedAnswer: "TRUE"}},
			{{QuestionID: "lq1", SelectedAnswer: "Rome"}},
		}
		for _, b := range batches {
			p, err := e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID, b)
			require.NoError(t, err)

			ledger, err := e.store.ListAnswers(ctx, catalog.Listening, st.AttemptID)
			require.NoError(t, err)
			correct := 0
			for _, a := range ledger {
				if a.IsCorrect {
					correct++
				}
			}
			assert.Equal(t, correct, p.CorrectAnswers)
			assert.InDelta(t, 100*float64(correct)/3, p.CurrentScore, 1e-9)

			a, err := e.store.GetAttempt(ctx, catalog.Listening, st.AttemptID)
			require.NoError(t, err)
			require.NotNil(t, a.Score)
			assert.InDelta(t, p.CurrentScore, *a.Score, 1e-9)
		}
	})
}

func TestSubmit_AllOrNothing(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
		require.NoError(t, err)
		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Reading, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "Q1", SelectedAnswer: "false"}})
		require.NoError(t, err)
		before, err := e.store.ListAnswers(ctx, catalog.Reading, st.AttemptID)
		require.NoError(t, err)

		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Reading, st.AttemptID, []attempt.AnswerInput{
			{QuestionID: "Q1", SelectedAnswer: "true"},
			{QuestionID: "99999", SelectedAnswer: "true"},
		})
		assert.True(t, errors.Is(err, attempt.ErrNotFound))

		// a question from another activity does not resolve either
		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Reading, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "lq1", SelectedAnswer: "Paris"}})
		assert.True(t, errors.Is(err, attempt.ErrNotFound))

		after, err := e.store.ListAnswers(ctx, catalog.Reading, st.AttemptID)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Reading, st.AttemptID, nil)
		ve := isValidation(t, err, "")
		assert.Contains(t, ve.Detail, "answers")
	})
}

func TestSubmit_PostCompletionLock(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Listening, "la1")
		require.NoError(t, err)
		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "lq1", SelectedAnswer: "Rome"}})
		require.NoError(t, err)
		_, err = e.lc.Complete(ctx, alice, catalog.Listening, st.AttemptID)
		require.NoError(t, err)

		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "lq1", SelectedAnswer: "Paris"}})
		isValidation(t, err, "completed")

		ledger, err := e.store.ListAnswers(ctx, catalog.Listening, st.AttemptID)
		require.NoError(t, err)
		require.Len(t, ledger, 1)
		assert.Equal(t, "Rome", ledger[0].SelectedAnswer)
	})
}

func TestSubmit_CaseAndWhitespaceInsensitive(t *testing.T) {
	cases := []struct {
		in      string
		correct bool
	}{
		{" paris ", true},
		{"PARIS", true},
		{"Pariss", false},
	}
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		for _, c := range cases {
			st, err := e.lc.Start(ctx, alice, catalog.Listening, "la1")
			require.NoError(t, err)
			p, err := e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID,
				[]attempt.AnswerInput{{QuestionID: "lq1", SelectedAnswer: c.in}})
			require.NoError(t, err)
			assert.Equal(t, c.correct, p.CorrectAnswers == 1, c.in)
			_, err = e.lc.Complete(ctx, alice, catalog.Listening, st.AttemptID)
			require.NoError(t, err)
		}
	})
}

func TestReading_FullFlow(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
		require.NoError(t, err)
		assert.Equal(t, 2, *st.TotalQuestions)

		p, err := e.lc.SubmitAnswers(ctx, alice, catalog.Reading, st.AttemptID, []attempt.AnswerInput{
			{QuestionID: "Q1", SelectedAnswer: "true"},
			{QuestionID: "Q2", SelectedAnswer: "true"},
		})
		require.NoError(t, err)
		assert.Equal(t, attempt.Progress{TotalQuestions: 2, CorrectAnswers: 1, CurrentScore: 50, IsCompleted: true}, p)

		res, err := e.lc.ObjectiveResult(ctx, alice, catalog.Reading, st.AttemptID)
		require.NoError(t, err)
		assert.True(t, res.IsCompleted)
		require.NotNil(t, res.CompletedAt)
		require.NotNil(t, res.ElapsedSeconds)
		require.Len(t, res.Questions, 2)
		assert.Equal(t, "Q1", res.Questions[0].QuestionID)
		assert.True(t, res.Questions[0].IsCorrect)
		assert.Equal(t, "false", res.Questions[1].CorrectAnswer)
		require.NotNil(t, res.Questions[1].SelectedAnswer)
		assert.Equal(t, "true", *res.Questions[1].SelectedAnswer)
		assert.Nil(t, res.Questions[1].Part)

		// reading does not treat a second complete as a no-op
		_, err = e.lc.Complete(ctx, alice, catalog.Reading, st.AttemptID)
		isValidation(t, err, "already completed")

		// the next start opens a fresh attempt
		next, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
		require.NoError(t, err)
		assert.NotEqual(t, st.AttemptID, next.AttemptID)
	})
}

func TestReading_CompleteRequiresSnapshotAnswered(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
		require.NoError(t, err)
		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Reading, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "Q1", SelectedAnswer: "true"}})
		require.NoError(t, err)

		// reading ignores content changes made after start
		e.cat.extra.Store(5)
		_, err = e.lc.Complete(ctx, alice, catalog.Reading, st.AttemptID)
		ve := isValidation(t, err, "answer all questions")
		assert.Equal(t, 1, ve.Detail["answered"])
		assert.Equal(t, 2, ve.Detail["total"])

		a, err := e.store.GetAttempt(ctx, catalog.Reading, st.AttemptID)
		require.NoError(t, err)
		assert.False(t, a.IsCompleted)
		assert.Nil(t, a.CompletedAt)
	})
}

func TestListening_CompleteRecountsContent(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Listening, "la1")
		require.NoError(t, err)
		assert.Equal(t, 3, *st.TotalQuestions)
		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID, []attempt.AnswerInput{
			{QuestionID: "lq1", SelectedAnswer: "Paris"},
			{QuestionID: "lq2", SelectedAnswer: "true"},
		})
		require.NoError(t, err)

		e.cat.extra.Store(2)
		c, err := e.lc.Complete(ctx, alice, catalog.Listening, st.AttemptID)
		require.NoError(t, err)
		assert.True(t, c.IsCompleted)
		assert.False(t, c.AlreadyCompleted)
		require.NotNil(t, c.CompletedAt)
		assert.Equal(t, 5, *c.TotalQuestions)
		assert.Equal(t, 2, *c.CorrectAnswers)
		assert.InDelta(t, 40.0, *c.Score, 1e-9)

		e.cat.extra.Store(0)
		again, err := e.lc.Complete(ctx, alice, catalog.Listening, st.AttemptID)
		require.NoError(t, err)
		assert.True(t, again.AlreadyCompleted)
		assert.Equal(t, 5, *again.TotalQuestions)
		assert.True(t, c.CompletedAt.Equal(*again.CompletedAt))
	})
}

func TestListening_Result(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Listening, "la1")
		require.NoError(t, err)
		_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "lq3", SelectedAnswer: "smith "}})
		require.NoError(t, err)

		res, err := e.lc.ObjectiveResult(ctx, alice, catalog.Listening, st.AttemptID)
		require.NoError(t, err)
		assert.False(t, res.IsCompleted)
		assert.Nil(t, res.ElapsedSeconds)
		assert.Equal(t, "http://media.test/media/listening/la1.png", res.Activity.MediaURL)
		require.Len(t, res.Questions, 3)

		assert.Equal(t, []string{"Paris", "Rome"}, res.Questions[0].Options)
		assert.Nil(t, res.Questions[0].SelectedAnswer)
		require.NotNil(t, res.Questions[0].Part)
		assert.Equal(t, "p1", res.Questions[0].Part.ID)
		assert.Equal(t, "http://media.test/media/listening/p1.mp3", res.Questions[0].Part.AudioURL)

		last := res.Questions[2]
		assert.Equal(t, "lq3", last.QuestionID)
		assert.True(t, last.IsCorrect)
		assert.Equal(t, "Part 2", last.Part.Title)

		_, err = e.lc.ObjectiveResult(ctx, bob, catalog.Listening, st.AttemptID)
		assert.True(t, errors.Is(err, attempt.ErrNotFound))
	})
}

func TestOwnership_ReportedAsNotFound(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
		require.NoError(t, err)

		_, err = e.lc.SubmitAnswers(ctx, bob, catalog.Reading, st.AttemptID,
			[]attempt.AnswerInput{{QuestionID: "Q1", SelectedAnswer: "true"}})
		assert.True(t, errors.Is(err, attempt.ErrNotFound))
		_, err = e.lc.Complete(ctx, bob, catalog.Reading, st.AttemptID)
		assert.True(t, errors.Is(err, attempt.ErrNotFound))
		_, err = e.lc.ObjectiveResult(ctx, bob, catalog.Reading, "nope")
		assert.True(t, errors.Is(err, attempt.ErrNotFound))

		// attempt ids are scoped to their kind
		_, err = e.lc.Complete(ctx, alice, catalog.Listening, st.AttemptID)
		assert.True(t, errors.Is(err, attempt.ErrNotFound))
	})
}

func TestSpeaking_Flow(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Speaking, "sa1")
		require.NoError(t, err)
		assert.Nil(t, st.TotalQuestions)

		_, err = e.lc.SubmitSpeaking(ctx, alice, "", "", nil)
		ve := isValidation(t, err, "")
		assert.Len(t, ve.Detail, 3)

		audio := func(s string) *attempt.Upload {
			return &attempt.Upload{Filename: "take.MP3", Body: strings.NewReader(s)}
		}
		_, err = e.lc.SubmitSpeaking(ctx, alice, st.AttemptID, "lq1", audio("x"))
		assert.True(t, errors.Is(err, attempt.ErrNotFound))
		_, err = e.lc.SubmitSpeaking(ctx, bob, st.AttemptID, "sq1", audio("x"))
		assert.True(t, errors.Is(err, attempt.ErrNotFound))

		first, err := e.lc.SubmitSpeaking(ctx, alice, st.AttemptID, "sq1", audio("take one"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(first.AudioURL, "http://media.test/media/speaking/"+st.AttemptID+"/sq1/"))
		assert.True(t, strings.HasSuffix(first.AudioURL, ".mp3"))

		_, err = e.lc.Complete(ctx, alice, catalog.Speaking, st.AttemptID)
		ve = isValidation(t, err, "")
		assert.Equal(t, map[string]any{"answered": 1, "total": 2}, ve.Detail)

		second, err := e.lc.SubmitSpeaking(ctx, alice, st.AttemptID, "sq1", audio("take two"))
		require.NoError(t, err)
		assert.NotEqual(t, first.AudioURL, second.AudioURL)
		_, err = e.lc.SubmitSpeaking(ctx, alice, st.AttemptID, "sq2", audio("x"))
		require.NoError(t, err)

		c, err := e.lc.Complete(ctx, alice, catalog.Speaking, st.AttemptID)
		require.NoError(t, err)
		assert.True(t, c.IsCompleted)
		assert.Nil(t, c.Score)

		res, err := e.lc.SpeakingResult(ctx, alice, st.AttemptID)
		require.NoError(t, err)
		assert.Equal(t, "Speaking One", res.ActivityTitle)
		assert.Nil(t, res.Score)
		assert.Nil(t, res.Feedback)
		require.Len(t, res.Answers, 2)
		byQ := map[string]attempt.SpeakingAnswerResult{}
		for _, a := range res.Answers {
			byQ[a.QuestionID] = a
		}
		assert.Equal(t, second.AudioURL, byQ["sq1"].AudioURL)
		assert.Equal(t, "Describe your town", byQ["sq2"].QuestionText)
		assert.Nil(t, byQ["sq1"].Transcript)

		_, err = e.lc.SubmitSpeaking(ctx, alice, st.AttemptID, "sq1", audio("late"))
		isValidation(t, err, "already completed")
	})
}

func TestWriting_AppendOnly(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Writing, "wa1")
		require.NoError(t, err)

		_, err = e.lc.Complete(ctx, alice, catalog.Writing, st.AttemptID)
		isValidation(t, err, "must submit before completing")

		_, err = e.lc.SubmitWriting(ctx, alice, st.AttemptID, "   ", nil)
		isValidation(t, err, "required")

		for i, text := range []string{"draft one", "draft two"} {
			ack, err := e.lc.SubmitWriting(ctx, alice, st.AttemptID, text, nil)
			require.NoError(t, err)
			assert.Equal(t, i+1, ack.Seq)
			assert.Empty(t, ack.FileURL)
		}
		ack, err := e.lc.SubmitWriting(ctx, alice, st.AttemptID, "", &attempt.Upload{Filename: "essay.pdf", Body: strings.NewReader("%PDF")})
		require.NoError(t, err)
		assert.Equal(t, 3, ack.Seq)
		assert.True(t, strings.HasSuffix(ack.FileURL, ".pdf"))

		c, err := e.lc.Complete(ctx, alice, catalog.Writing, st.AttemptID)
		require.NoError(t, err)
		assert.True(t, c.IsCompleted)

		res, err := e.lc.WritingResult(ctx, alice, st.AttemptID)
		require.NoError(t, err)
		assert.Equal(t, "Discuss", res.Activity.Prompt)
		require.Len(t, res.Submissions, 3)
		assert.Equal(t, "draft one", res.Submissions[0].SubmissionText)
		assert.Equal(t, "draft two", res.Submissions[1].SubmissionText)
		assert.Equal(t, ack.FileURL, res.Submissions[2].FileURL)
		for i, s := range res.Submissions {
			assert.Equal(t, i+1, s.Seq)
		}

		_, err = e.lc.SubmitWriting(ctx, alice, st.AttemptID, "after", nil)
		isValidation(t, err, "already completed")
	})
}

func TestAssignGrade(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		teacher := attempt.Principal{StudentID: "t1", Role: "teacher"}
		st, err := e.lc.Start(ctx, alice, catalog.Writing, "wa1")
		require.NoError(t, err)

		_, err = e.lc.AssignGrade(ctx, teacher, catalog.Writing, st.AttemptID, 6.5, "good")
		isValidation(t, err, "not completed")

		_, err = e.lc.SubmitWriting(ctx, alice, st.AttemptID, "essay", nil)
		require.NoError(t, err)
		_, err = e.lc.Complete(ctx, alice, catalog.Writing, st.AttemptID)
		require.NoError(t, err)

		_, err = e.lc.AssignGrade(ctx, teacher, catalog.Writing, st.AttemptID, -1, "")
		isValidation(t, err, "")
		_, err = e.lc.AssignGrade(ctx, teacher, catalog.Reading, st.AttemptID, 5, "")
		assert.True(t, errors.Is(err, attempt.ErrUnsupported))

		a, err := e.lc.AssignGrade(ctx, teacher, catalog.Writing, st.AttemptID, 6.5, "good structure")
		require.NoError(t, err)
		require.NotNil(t, a.Score)
		assert.Equal(t, 6.5, *a.Score)

		res, err := e.lc.WritingResult(ctx, alice, st.AttemptID)
		require.NoError(t, err)
		require.NotNil(t, res.Feedback)
		assert.Equal(t, "good structure", *res.Feedback)
	})
}

func TestHistory(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		var ids []string
		for i := 0; i < 2; i++ {
			st, err := e.lc.Start(ctx, alice, catalog.Reading, "ra1")
			require.NoError(t, err)
			ids = append(ids, st.AttemptID)
			_, err = e.lc.SubmitAnswers(ctx, alice, catalog.Reading, st.AttemptID, []attempt.AnswerInput{
				{QuestionID: "Q1", SelectedAnswer: "true"}, {QuestionID: "Q2", SelectedAnswer: "false"},
			})
			require.NoError(t, err)
		}
		_, err := e.lc.Start(ctx, bob, catalog.Reading, "ra1")
		require.NoError(t, err)

		list, err := e.lc.History(ctx, alice, catalog.Reading, attempt.ListOpts{StudentID: "bob"})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, ids[1], list[0].ID)
		assert.Equal(t, ids[0], list[1].ID)

		done := false
		list, err = e.lc.History(ctx, bob, catalog.Reading, attempt.ListOpts{Completed: &done})
		require.NoError(t, err)
		require.Len(t, list, 1)

		list, err = e.lc.History(ctx, bob, catalog.Writing, attempt.ListOpts{})
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})
}

func TestConcurrentSubmitsKeepAggregate(t *testing.T) {
	each(t, func(t *testing.T, e env) {
		ctx := context.Background()
		st, err := e.lc.Start(ctx, alice, catalog.Listening, "la1")
		require.NoError(t, err)

		answers := []attempt.AnswerInput{
			{QuestionID: "lq1", SelectedAnswer: "Paris"},
			{QuestionID: "lq2", SelectedAnswer: "true"},
			{QuestionID: "lq3", SelectedAnswer: "Smith"},
		}
		var wg sync.WaitGroup
		errs := make(chan error, len(answers)*4)
		for r := 0; r < 4; r++ {
			for _, in := range answers {
				wg.Add(1)
				go func(in attempt.AnswerInput) {
					defer wg.Done()
					_, err := e.lc.SubmitAnswers(ctx, alice, catalog.Listening, st.AttemptID, []attempt.AnswerInput{in})
					errs <- err
				}(in)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			// late writers may find the attempt auto-completed
			if err != nil {
				_, ok := attempt.IsValidation(err)
				assert.True(t, ok || errors.Is(err, attempt.ErrConflict), "unexpected %v", err)
			}
		}

		a, err := e.store.GetAttempt(ctx, catalog.Listening, st.AttemptID)
		require.NoError(t, err)
		assert.True(t, a.IsCompleted)
		assert.Equal(t, 3, a.CorrectAnswers)
		assert.InDelta(t, 100.0, *a.Score, 1e-9)
	})
}

func TestEventsAndLogging(t *testing.T) {
	e := envs(t)["memory"]
	ctx := context.Background()
	st, err := e.lc.Start(ctx, alice, catalog.Writing, "wa1")
	require.NoError(t, err)
	_, err = e.lc.SubmitWriting(ctx, alice, st.AttemptID, "essay", nil)
	require.NoError(t, err)
	_, err = e.lc.Complete(ctx, alice, catalog.Writing, st.AttemptID)
	require.NoError(t, err)

	events := e.store.(*attempt.MemoryStore).Events()
	require.Len(t, events, 2)
	assert.Equal(t, syncx.AttemptStarted, events[0].Type)
	assert.Equal(t, syncx.AttemptCompleted, events[1].Type)
	assert.Equal(t, st.AttemptID, events[1].Key)

	var msgs []string
	for _, en := range e.log.AllEntries() {
		msgs = append(msgs, en.Message)
	}
	assert.Equal(t, []string{"attempt started", "attempt completed"}, msgs)
	assert.Equal(t, st.AttemptID, e.log.LastEntry().Data["attempt_id"])
}
