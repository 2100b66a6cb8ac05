package attempt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/db"
	syncx "github.com/mind-engage/mindengage-practice/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
}

func NewSQLStore(h *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{db: h, driver: driver}
}

const attemptCols = `id, student_id, activity_id, started_at, completed_at, is_completed,
	total_questions, correct_answers, score, feedback, version`

func attemptsTable(kind Kind) (string, error) {
	if !kind.Valid() {
		return "", errors.Errorf("unknown activity kind %q", kind)
	}
	return string(kind) + "_attempts", nil
}

// lockClause row-locks the attempt on postgres. SQLite runs one writer at a
// time, so the transaction alone serialises updates there.
func (s *SQLStore) lockClause() string {
	if s.driver == db.DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner, kind Kind) (Attempt, error) {
	var (
		a         = Attempt{Kind: kind}
		started   int64
		completed sql.NullInt64
		score     sql.NullFloat64
		feedback  sql.NullString
	)
	if err := row.Scan(&a.ID, &a.StudentID, &a.ActivityID, &started, &completed, &a.IsCompleted,
		&a.TotalQuestions, &a.CorrectAnswers, &score, &feedback, &a.Version); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = fromMillis(started)
	if completed.Valid {
		t := fromMillis(completed.Int64)
		a.CompletedAt = &t
	}
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	if feedback.Valid {
		v := feedback.String
		a.Feedback = &v
	}
	return a, nil
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func (s *SQLStore) pending(ctx context.Context, q db.Querier, kind Kind, studentID, activityID string) (Attempt, error) {
	table, err := attemptsTable(kind)
	if err != nil {
		return Attempt{}, err
	}
	a, err := scanAttempt(q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM `+table+` WHERE student_id=$1 AND activity_id=$2 AND NOT is_completed`,
		studentID, activityID), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) StartOrResume(ctx context.Context, kind Kind, studentID, activityID string, total int, now time.Time) (Attempt, bool, error) {
	table, err := attemptsTable(kind)
	if err != nil {
		return Attempt{}, false, err
	}

	var (
		out     Attempt
		created bool
	)
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		found, err := s.pending(ctx, tx, kind, studentID, activityID)
		if err == nil {
			out = found
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		a := Attempt{
			ID:             uuid.NewString(),
			Kind:           kind,
			StudentID:      studentID,
			ActivityID:     activityID,
			StartedAt:      fromMillis(toMillis(now)),
			TotalQuestions: total,
		}
		var score any
		if policies[kind].Graded {
			zero := 0.0
			a.Score = &zero
			score = zero
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+`
			(id, student_id, activity_id, started_at, is_completed, total_questions, correct_answers, score, version)
			VALUES ($1,$2,$3,$4,$5,$6,0,$7,0)`,
			a.ID, studentID, activityID, toMillis(a.StartedAt), false, total, score); err != nil {
			return errors.Wrapf(err, "insert %s attempt", kind)
		}
		ev, err := syncx.NewEvent(syncx.AttemptStarted, a.ID, map[string]any{"kind": kind, "student_id": studentID, "activity_id": activityID})
		if err != nil {
			return err
		}
		if err := syncx.Append(ctx, tx, ev); err != nil {
			return errors.Wrap(err, "append event")
		}
		out, created = a, true
		return nil
	})
	if err != nil {
		// a concurrent start may have won the pending-attempt unique index
		if found, e := s.pending(ctx, s.db, kind, studentID, activityID); e == nil {
			return found, false, nil
		}
		return Attempt{}, false, err
	}
	return out, created, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, kind Kind, id string) (Attempt, error) {
	table, err := attemptsTable(kind)
	if err != nil {
		return Attempt{}, err
	}
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM `+table+` WHERE id=$1`, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, notFound("attempt", id)
	}
	if err != nil {
		return Attempt{}, errors.Wrapf(err, "load %s attempt", kind)
	}
	return a, nil
}

func (s *SQLStore) ListAnswers(ctx context.Context, kind Kind, attemptID string) ([]Answer, error) {
	var (
		query string
		scan  func(rows *sql.Rows) (Answer, error)
	)
	switch kind {
	case catalog.Listening, catalog.Reading:
		query = `SELECT id, attempt_id, question_id, selected_answer, is_correct, created_at, updated_at
			FROM ` + string(kind) + `_answers WHERE attempt_id=$1 ORDER BY created_at, id`
		scan = func(rows *sql.Rows) (Answer, error) {
			var (
				a        Answer
				cre, upd int64
			)
			err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedAnswer, &a.IsCorrect, &cre, &upd)
			a.CreatedAt, a.UpdatedAt = fromMillis(cre), fromMillis(upd)
			return a, err
		}
	case catalog.Speaking:
		query = `SELECT id, attempt_id, question_id, audio_key, transcript, created_at, updated_at
			FROM speaking_answers WHERE attempt_id=$1 ORDER BY created_at, id`
		scan = func(rows *sql.Rows) (Answer, error) {
			var (
				a        Answer
				tr       sql.NullString
				cre, upd int64
			)
			err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.AudioKey, &tr, &cre, &upd)
			if tr.Valid {
				v := tr.String
				a.Transcript = &v
			}
			a.CreatedAt, a.UpdatedAt = fromMillis(cre), fromMillis(upd)
			return a, err
		}
	case catalog.Writing:
		query = `SELECT id, attempt_id, seq, submission_text, file_key, created_at
			FROM writing_submissions WHERE attempt_id=$1 ORDER BY seq`
		scan = func(rows *sql.Rows) (Answer, error) {
			var (
				a   Answer
				cre int64
			)
			err := rows.Scan(&a.ID, &a.AttemptID, &a.Seq, &a.SubmissionText, &a.FileKey, &cre)
			a.CreatedAt = fromMillis(cre)
			a.UpdatedAt = a.CreatedAt
			return a, err
		}
	default:
		return nil, errors.Errorf("unknown activity kind %q", kind)
	}

	rows, err := s.db.QueryContext(ctx, query, attemptID)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s answers", kind)
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s answer", kind)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListAttempts(ctx context.Context, kind Kind, opts ListOpts) ([]Attempt, error) {
	table, err := attemptsTable(kind)
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.StudentID != "" {
		add("student_id=$%d", opts.StudentID)
	}
	if opts.ActivityID != "" {
		add("activity_id=$%d", opts.ActivityID)
	}
	if opts.Completed != nil {
		add("is_completed=$%d", *opts.Completed)
	}
	query := `SELECT ` + attemptCols + ` FROM ` + table
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, id DESC`
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s attempts", kind)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows, kind)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s attempt", kind)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, kind Kind, id string, fn func(Tx, *Attempt) error) (Attempt, error) {
	table, err := attemptsTable(kind)
	if err != nil {
		return Attempt{}, err
	}
	var out Attempt
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		a, err := scanAttempt(tx.QueryRowContext(ctx,
			`SELECT `+attemptCols+` FROM `+table+` WHERE id=$1`+s.lockClause(), id), kind)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("attempt", id)
		}
		if err != nil {
			return errors.Wrapf(err, "lock %s attempt", kind)
		}

		prev := a.Version
		if err := fn(&sqlTx{tx: tx, kind: kind, attemptID: a.ID}, &a); err != nil {
			return err
		}
		a.Version = prev + 1

		var completed, score, feedback any
		if a.CompletedAt != nil {
			completed = toMillis(*a.CompletedAt)
		}
		if a.Score != nil {
			score = *a.Score
		}
		if a.Feedback != nil {
			feedback = *a.Feedback
		}
		res, err := tx.ExecContext(ctx, `UPDATE `+table+`
			SET completed_at=$1, is_completed=$2, total_questions=$3, correct_answers=$4, score=$5, feedback=$6, version=$7
			WHERE id=$8 AND version=$9`,
			completed, a.IsCompleted, a.TotalQuestions, a.CorrectAnswers, score, feedback, a.Version, a.ID, prev)
		if err != nil {
			return errors.Wrapf(err, "update %s attempt", kind)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrConflict
		}
		out = a
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	return out, nil
}

type sqlTx struct {
	tx        *sql.Tx
	kind      Kind
	attemptID string
}

func (t *sqlTx) UpsertAnswer(ctx context.Context, ans Answer) error {
	if ans.ID == "" {
		ans.ID = uuid.NewString()
	}
	var err error
	switch t.kind {
	case catalog.Listening, catalog.Reading:
		_, err = t.tx.ExecContext(ctx, `INSERT INTO `+string(t.kind)+`_answers
			(id, attempt_id, question_id, selected_answer, is_correct, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (attempt_id, question_id) DO UPDATE SET
				selected_answer=EXCLUDED.selected_answer,
				is_correct=EXCLUDED.is_correct,
				updated_at=EXCLUDED.updated_at`,
			ans.ID, t.attemptID, ans.QuestionID, ans.SelectedAnswer, ans.IsCorrect,
			toMillis(ans.CreatedAt), toMillis(ans.UpdatedAt))
	case catalog.Speaking:
		// a new recording invalidates the previous transcript
		_, err = t.tx.ExecContext(ctx, `INSERT INTO speaking_answers
			(id, attempt_id, question_id, audio_key, transcript, created_at, updated_at)
			VALUES ($1,$2,$3,$4,NULL,$5,$6)
			ON CONFLICT (attempt_id, question_id) DO UPDATE SET
				audio_key=EXCLUDED.audio_key,
				transcript=NULL,
				updated_at=EXCLUDED.updated_at`,
			ans.ID, t.attemptID, ans.QuestionID, ans.AudioKey,
			toMillis(ans.CreatedAt), toMillis(ans.UpdatedAt))
	default:
		return ErrUnsupported
	}
	return errors.Wrapf(err, "upsert %s answer", t.kind)
}

func (t *sqlTx) AppendSubmission(ctx context.Context, ans Answer) (Answer, error) {
	if t.kind != catalog.Writing {
		return Answer{}, ErrUnsupported
	}
	if ans.ID == "" {
		ans.ID = uuid.NewString()
	}
	ans.AttemptID = t.attemptID
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM writing_submissions WHERE attempt_id=$1`, t.attemptID).
		Scan(&ans.Seq); err != nil {
		return Answer{}, errors.Wrap(err, "next submission seq")
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO writing_submissions
		(id, attempt_id, seq, submission_text, file_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ans.ID, t.attemptID, ans.Seq, ans.SubmissionText, ans.FileKey, toMillis(ans.CreatedAt)); err != nil {
		return Answer{}, errors.Wrap(err, "insert writing submission")
	}
	return ans, nil
}

func (t *sqlTx) Tally(ctx context.Context) (answered, correct int, err error) {
	var query string
	switch t.kind {
	case catalog.Listening, catalog.Reading:
		query = `SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0)
			FROM ` + string(t.kind) + `_answers WHERE attempt_id=$1`
	case catalog.Speaking:
		query = `SELECT COUNT(*), 0 FROM speaking_answers WHERE attempt_id=$1`
	case catalog.Writing:
		query = `SELECT COUNT(*), 0 FROM writing_submissions WHERE attempt_id=$1`
	default:
		return 0, 0, ErrUnsupported
	}
	if err := t.tx.QueryRowContext(ctx, query, t.attemptID).Scan(&answered, &correct); err != nil {
		return 0, 0, errors.Wrapf(err, "tally %s answers", t.kind)
	}
	return answered, correct, nil
}

func (t *sqlTx) AppendEvent(ctx context.Context, typ string, data any) error {
	ev, err := syncx.NewEvent(typ, t.attemptID, data)
	if err != nil {
		return err
	}
	return errors.Wrap(syncx.Append(ctx, t.tx, ev), "append event")
}
