package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-practice/internal/db"
)

type SQLCatalog struct {
	q db.Querier
}

func NewSQLCatalog(q db.Querier) *SQLCatalog {
	return &SQLCatalog{q: q}
}

func (c *SQLCatalog) Activity(ctx context.Context, kind Kind, id string) (Activity, error) {
	var (
		a     = Activity{Kind: kind}
		query string
		dest  = []any{&a.ID, &a.TaskID, &a.Title, &a.DurationMin, &a.Instructions, &a.MediaKey}
	)
	switch kind {
	case Listening, Speaking:
		query = fmt.Sprintf(`SELECT id, task_id, title, duration_min, instructions, media_key FROM %s_activities WHERE id=$1`, kind)
	case Reading:
		query = `SELECT id, task_id, title, duration_min, instructions, media_key, passage FROM reading_activities WHERE id=$1`
		dest = append(dest, &a.Passage)
	case Writing:
		query = `SELECT id, task_id, title, duration_min, instructions, media_key, prompt FROM writing_activities WHERE id=$1`
		dest = append(dest, &a.Prompt)
	default:
		return Activity{}, ErrNotFound
	}
	if err := c.q.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Activity{}, ErrNotFound
		}
		return Activity{}, errors.Wrapf(err, "load %s activity %s", kind, id)
	}
	return a, nil
}

func (c *SQLCatalog) Parts(ctx context.Context, activityID string) ([]Part, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, activity_id, position, title, audio_key
		FROM listening_parts WHERE activity_id=$1
		ORDER BY position, id`, activityID)
	if err != nil {
		return nil, errors.Wrap(err, "list listening parts")
	}
	defer rows.Close()

	var out []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.ActivityID, &p.Position, &p.Title, &p.AudioKey); err != nil {
			return nil, errors.Wrap(err, "scan listening part")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *SQLCatalog) Questions(ctx context.Context, kind Kind, activityID string) ([]Question, error) {
	var query string
	switch kind {
	case Listening:
		query = `
		SELECT q.id, p.activity_id, q.part_id, q.position, q.type, q.text, q.options_json, q.correct_answer, q.bundle_id
		FROM listening_questions q JOIN listening_parts p ON p.id = q.part_id
		WHERE p.activity_id=$1
		ORDER BY p.position, p.id, q.position, q.id`
	case Reading:
		query = `
		SELECT id, activity_id, '', position, type, text, options_json, correct_answer, bundle_id
		FROM reading_questions WHERE activity_id=$1
		ORDER BY position, id`
	case Speaking:
		query = `
		SELECT id, activity_id, '', position, type, text, '[]', '', bundle_id
		FROM speaking_questions WHERE activity_id=$1
		ORDER BY position, id`
	case Writing:
		return nil, nil
	default:
		return nil, ErrNotFound
	}

	rows, err := c.q.QueryContext(ctx, query, activityID)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s questions", kind)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var (
			q    Question
			opts string
		)
		if err := rows.Scan(&q.ID, &q.ActivityID, &q.PartID, &q.Position, &q.Type, &q.Text, &opts, &q.Correct, &q.BundleID); err != nil {
			return nil, errors.Wrapf(err, "scan %s question", kind)
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, errors.Wrapf(err, "decode options of question %s", q.ID)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (c *SQLCatalog) CountQuestions(ctx context.Context, kind Kind, activityID string) (int, error) {
	var query string
	switch kind {
	case Listening:
		query = `SELECT COUNT(*) FROM listening_questions q JOIN listening_parts p ON p.id = q.part_id WHERE p.activity_id=$1`
	case Reading, Speaking:
		query = fmt.Sprintf(`SELECT COUNT(*) FROM %s_questions WHERE activity_id=$1`, kind)
	case Writing:
		return 0, nil
	default:
		return 0, ErrNotFound
	}
	var n int
	if err := c.q.QueryRowContext(ctx, query, activityID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s questions", kind)
	}
	return n, nil
}
