package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-practice/internal/db"
)

// Bundle is a content fixture, typically read from JSON with DecodeBundle.
type Bundle struct {
	Listening []ListeningFixture `json:"listening"`
	Reading   []ActivityFixture  `json:"reading"`
	Speaking  []ActivityFixture  `json:"speaking"`
	Writing   []Activity         `json:"writing"`
}

type ListeningFixture struct {
	Activity
	Parts []PartFixture `json:"parts"`
}

type PartFixture struct {
	Part
	Questions []Question `json:"questions"`
}

type ActivityFixture struct {
	Activity
	Questions []Question `json:"questions"`
}

const maxOptions = 4

func DecodeBundle(r io.Reader) (Bundle, error) {
	var b Bundle
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return Bundle{}, errors.Wrap(err, "decode catalog bundle")
	}
	return b, nil
}

// Import upserts every activity, part and question of b in one transaction.
func Import(ctx context.Context, h *sql.DB, b Bundle) error {
	return db.WithTx(ctx, h, nil, func(tx *sql.Tx) error {
		for _, la := range b.Listening {
			if err := putActivity(ctx, tx, Listening, la.Activity); err != nil {
				return err
			}
			for i, p := range la.Parts {
				if p.Position == 0 {
					p.Position = i + 1
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO listening_parts (id, activity_id, position, title, audio_key)
					VALUES ($1,$2,$3,$4,$5)
					ON CONFLICT (id) DO UPDATE SET activity_id=EXCLUDED.activity_id, position=EXCLUDED.position,
						title=EXCLUDED.title, audio_key=EXCLUDED.audio_key`,
					p.ID, la.ID, p.Position, p.Title, p.AudioKey); err != nil {
					return errors.Wrapf(err, "put listening part %s", p.ID)
				}
				for j, q := range p.Questions {
					if err := putObjectiveQuestion(ctx, tx, "listening_questions", "part_id", p.ID, j, q); err != nil {
						return err
					}
				}
			}
		}
		for _, ra := range b.Reading {
			if err := putActivity(ctx, tx, Reading, ra.Activity); err != nil {
				return err
			}
			for j, q := range ra.Questions {
				if err := putObjectiveQuestion(ctx, tx, "reading_questions", "activity_id", ra.ID, j, q); err != nil {
					return err
				}
			}
		}
		for _, sa := range b.Speaking {
			if err := putActivity(ctx, tx, Speaking, sa.Activity); err != nil {
				return err
			}
			for j, q := range sa.Questions {
				if q.Position == 0 {
					q.Position = j + 1
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO speaking_questions (id, activity_id, position, type, text, bundle_id)
					VALUES ($1,$2,$3,$4,$5,$6)
					ON CONFLICT (id) DO UPDATE SET activity_id=EXCLUDED.activity_id, position=EXCLUDED.position,
						type=EXCLUDED.type, text=EXCLUDED.text, bundle_id=EXCLUDED.bundle_id`,
					q.ID, sa.ID, q.Position, q.Type, q.Text, q.BundleID); err != nil {
					return errors.Wrapf(err, "put speaking question %s", q.ID)
				}
			}
		}
		for _, wa := range b.Writing {
			if err := putActivity(ctx, tx, Writing, wa); err != nil {
				return err
			}
		}
		return nil
	})
}

func putActivity(ctx context.Context, tx *sql.Tx, kind Kind, a Activity) error {
	if a.ID == "" || a.Title == "" {
		return errors.Errorf("%s activity requires id and title", kind)
	}
	cols, vals := "id, task_id, title, duration_min, instructions, media_key", "$1,$2,$3,$4,$5,$6"
	set := "task_id=EXCLUDED.task_id, title=EXCLUDED.title, duration_min=EXCLUDED.duration_min, instructions=EXCLUDED.instructions, media_key=EXCLUDED.media_key"
	args := []any{a.ID, a.TaskID, a.Title, a.DurationMin, a.Instructions, a.MediaKey}
	switch kind {
	case Reading:
		cols, vals, set = cols+", passage", vals+",$7", set+", passage=EXCLUDED.passage"
		args = append(args, a.Passage)
	case Writing:
		cols, vals, set = cols+", prompt", vals+",$7", set+", prompt=EXCLUDED.prompt"
		args = append(args, a.Prompt)
	}
	query := "INSERT INTO " + string(kind) + "_activities (" + cols + ") VALUES (" + vals + ") ON CONFLICT (id) DO UPDATE SET " + set
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "put %s activity %s", kind, a.ID)
	}
	return nil
}

func putObjectiveQuestion(ctx context.Context, tx *sql.Tx, table, parentCol, parentID string, idx int, q Question) error {
	if q.ID == "" {
		return errors.Errorf("%s: question without id", table)
	}
	if len(q.Options) > maxOptions {
		return errors.Errorf("question %s has %d options (max %d)", q.ID, len(q.Options), maxOptions)
	}
	if q.Position == 0 {
		q.Position = idx + 1
	}
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	oj, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	query := "INSERT INTO " + table + " (id, " + parentCol + `, position, type, text, options_json, correct_answer, bundle_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET ` + parentCol + "=EXCLUDED." + parentCol + `, position=EXCLUDED.position,
			type=EXCLUDED.type, text=EXCLUDED.text, options_json=EXCLUDED.options_json,
			correct_answer=EXCLUDED.correct_answer, bundle_id=EXCLUDED.bundle_id`
	if _, err := tx.ExecContext(ctx, query, q.ID, parentID, q.Position, q.Type, q.Text, string(oj), q.Correct, q.BundleID); err != nil {
		return errors.Wrapf(err, "put question %s", q.ID)
	}
	return nil
}
