package db

import "fmt"

// Kinds whose attempt tables share one shape. Storage stays per kind.
var attemptKinds = []string{"listening", "reading", "speaking", "writing"}

// Schema returns the idempotent DDL for driver, one statement per element.
func Schema(driver Driver) []string {
	realType := "REAL"
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		realType = "DOUBLE PRECISION"
		serial = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		// --- content catalog (read-only for the lifecycle) ---
		`CREATE TABLE IF NOT EXISTS listening_activities (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  duration_min INTEGER NOT NULL DEFAULT 0,
  instructions TEXT NOT NULL DEFAULT '',
  media_key TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS listening_parts (
  id TEXT PRIMARY KEY,
  activity_id TEXT NOT NULL REFERENCES listening_activities(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  title TEXT NOT NULL DEFAULT '',
  audio_key TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS listening_questions (
  id TEXT PRIMARY KEY,
  part_id TEXT NOT NULL REFERENCES listening_parts(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  type TEXT NOT NULL DEFAULT '',
  text TEXT NOT NULL DEFAULT '',
  options_json TEXT NOT NULL DEFAULT '[]',
  correct_answer TEXT NOT NULL DEFAULT '',
  bundle_id TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS reading_activities (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  duration_min INTEGER NOT NULL DEFAULT 0,
  instructions TEXT NOT NULL DEFAULT '',
  passage TEXT NOT NULL DEFAULT '',
  media_key TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS reading_questions (
  id TEXT PRIMARY KEY,
  activity_id TEXT NOT NULL REFERENCES reading_activities(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  type TEXT NOT NULL DEFAULT '',
  text TEXT NOT NULL DEFAULT '',
  options_json TEXT NOT NULL DEFAULT '[]',
  correct_answer TEXT NOT NULL DEFAULT '',
  bundle_id TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS speaking_activities (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  duration_min INTEGER NOT NULL DEFAULT 0,
  instructions TEXT NOT NULL DEFAULT '',
  media_key TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS speaking_questions (
  id TEXT PRIMARY KEY,
  activity_id TEXT NOT NULL REFERENCES speaking_activities(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  type TEXT NOT NULL DEFAULT '',
  text TEXT NOT NULL DEFAULT '',
  bundle_id TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS writing_activities (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  duration_min INTEGER NOT NULL DEFAULT 0,
  instructions TEXT NOT NULL DEFAULT '',
  prompt TEXT NOT NULL DEFAULT '',
  media_key TEXT NOT NULL DEFAULT ''
)`,
	}

	for _, k := range attemptKinds {
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s_attempts (
  id TEXT PRIMARY KEY,
  student_id TEXT NOT NULL,
  activity_id TEXT NOT NULL REFERENCES %[1]s_activities(id) ON DELETE CASCADE,
  started_at BIGINT NOT NULL,
  completed_at BIGINT,
  is_completed BOOLEAN NOT NULL DEFAULT FALSE,
  total_questions INTEGER NOT NULL DEFAULT 0,
  correct_answers INTEGER NOT NULL DEFAULT 0,
  score %[2]s,
  feedback TEXT,
  version BIGINT NOT NULL DEFAULT 0
)`, k, realType),
			// one in-flight attempt per (student, activity)
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_attempts_pending_uq
  ON %[1]s_attempts (student_id, activity_id) WHERE NOT is_completed`, k),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_attempts_student_idx
  ON %[1]s_attempts (student_id, started_at)`, k),
		)
	}

	for _, k := range []string{"listening", "reading"} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s_answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES %[1]s_attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_answer TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  UNIQUE (attempt_id, question_id)
)`, k))
	}

	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS speaking_answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES speaking_attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  audio_key TEXT NOT NULL,
  transcript TEXT,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  UNIQUE (attempt_id, question_id)
)`,
		`CREATE TABLE IF NOT EXISTS writing_submissions (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES writing_attempts(id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  submission_text TEXT NOT NULL DEFAULT '',
  file_key TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  UNIQUE (attempt_id, seq)
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS event_log (
  seq %s,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
)`, serial),
	)
	return stmts
}
