package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:perfcycle.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/perfcycle?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS evaluation_administrations (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  period_start INTEGER NOT NULL,
  period_end INTEGER NOT NULL,
  schedule_start INTEGER NOT NULL,
  schedule_end INTEGER NOT NULL,
  remarks TEXT NOT NULL DEFAULT '',
  email_subject TEXT NOT NULL DEFAULT '',
  email_content TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS evaluation_results (
  id TEXT PRIMARY KEY,
  administration_id TEXT NOT NULL REFERENCES evaluation_administrations(id),
  evaluee_id TEXT NOT NULL,
  status TEXT NOT NULL,
  score REAL NOT NULL DEFAULT 0,
  zscore REAL NOT NULL DEFAULT 0,
  banding TEXT NOT NULL DEFAULT '',
  score_rating_id TEXT NOT NULL DEFAULT '',
  UNIQUE (administration_id, evaluee_id)
);

CREATE TABLE IF NOT EXISTS evaluation_result_details (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES evaluation_results(id),
  template_id TEXT NOT NULL,
  weight REAL NOT NULL DEFAULT 0,
  score REAL NOT NULL DEFAULT 0,
  weighted_score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS evaluations (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES evaluation_results(id),
  administration_id TEXT NOT NULL,
  template_id TEXT NOT NULL,
  evaluator_id TEXT NOT NULL DEFAULT '',
  external_evaluator_id TEXT NOT NULL DEFAULT '',
  evaluee_id TEXT NOT NULL,
  project_id TEXT NOT NULL DEFAULT '',
  project_member_id TEXT NOT NULL DEFAULT '',
  period_start INTEGER NOT NULL,
  period_end INTEGER NOT NULL,
  percent_involvement REAL NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  for_evaluation INTEGER NOT NULL DEFAULT 0,
  score REAL NOT NULL DEFAULT 0,
  weight REAL NOT NULL DEFAULT 0,
  weighted_score REAL NOT NULL DEFAULT 0,
  comments TEXT NOT NULL DEFAULT '',
  submission_method TEXT NOT NULL DEFAULT '',
  submitted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_evaluations_admin ON evaluations(administration_id, status);
CREATE INDEX IF NOT EXISTS idx_evaluations_result ON evaluations(result_id, status);

CREATE TABLE IF NOT EXISTS evaluation_ratings (
  id TEXT PRIMARY KEY,
  evaluation_id TEXT NOT NULL REFERENCES evaluations(id),
  content_id TEXT NOT NULL,
  answer_option_id TEXT NOT NULL DEFAULT '',
  rate REAL NOT NULL DEFAULT 0,
  percentage REAL NOT NULL DEFAULT 0,
  score REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ratings_evaluation ON evaluation_ratings(evaluation_id);

CREATE TABLE IF NOT EXISTS evaluation_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  evaluee_role TEXT NOT NULL,
  evaluator_role TEXT NOT NULL,
  rate REAL NOT NULL DEFAULT 0,
  answer_scale_id TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS evaluation_template_contents (
  id TEXT PRIMARY KEY,
  template_id TEXT NOT NULL REFERENCES evaluation_templates(id),
  name TEXT NOT NULL,
  rate REAL NOT NULL DEFAULT 0,
  sequence_no INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS answer_options (
  id TEXT PRIMARY KEY,
  scale_id TEXT NOT NULL,
  name TEXT NOT NULL,
  rate REAL NOT NULL DEFAULT 0,
  sequence_no INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS score_ratings (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  min_score REAL NOT NULL,
  max_score REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  is_hr INTEGER NOT NULL DEFAULT 0,
  is_bod INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS external_evaluators (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT '',
  access_code_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS project_members (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL REFERENCES projects(id),
  user_id TEXT NOT NULL,
  project_role TEXT NOT NULL,
  allocation_rate REAL NOT NULL DEFAULT 0,
  start_date INTEGER NOT NULL,
  end_date INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);
CREATE INDEX IF NOT EXISTS idx_members_project ON project_members(project_id);

CREATE TABLE IF NOT EXISTS email_logs (
  id TEXT PRIMARY KEY,
  recipient TEXT NOT NULL,
  subject TEXT NOT NULL,
  body TEXT NOT NULL,
  status TEXT NOT NULL,
  last_error TEXT,
  retries INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  sent_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_email_logs_status ON email_logs(status, created_at);

CREATE TABLE IF NOT EXISTS activity_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  actor_id TEXT NOT NULL,
  action TEXT NOT NULL,
  path TEXT NOT NULL,
  status INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS evaluation_administrations (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  period_start BIGINT NOT NULL,
  period_end BIGINT NOT NULL,
  schedule_start BIGINT NOT NULL,
  schedule_end BIGINT NOT NULL,
  remarks TEXT NOT NULL DEFAULT '',
  email_subject TEXT NOT NULL DEFAULT '',
  email_content TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS evaluation_results (
  id TEXT PRIMARY KEY,
  administration_id TEXT NOT NULL REFERENCES evaluation_administrations(id),
  evaluee_id TEXT NOT NULL,
  status TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  zscore DOUBLE PRECISION NOT NULL DEFAULT 0,
  banding TEXT NOT NULL DEFAULT '',
  score_rating_id TEXT NOT NULL DEFAULT '',
  UNIQUE (administration_id, evaluee_id)
);

CREATE TABLE IF NOT EXISTS evaluation_result_details (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES evaluation_results(id),
  template_id TEXT NOT NULL,
  weight DOUBLE PRECISION NOT NULL DEFAULT 0,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  weighted_score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS evaluations (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES evaluation_results(id),
  administration_id TEXT NOT NULL,
  template_id TEXT NOT NULL,
  evaluator_id TEXT NOT NULL DEFAULT '',
  external_evaluator_id TEXT NOT NULL DEFAULT '',
  evaluee_id TEXT NOT NULL,
  project_id TEXT NOT NULL DEFAULT '',
  project_member_id TEXT NOT NULL DEFAULT '',
  period_start BIGINT NOT NULL,
  period_end BIGINT NOT NULL,
  percent_involvement DOUBLE PRECISION NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  for_evaluation INTEGER NOT NULL DEFAULT 0,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  weight DOUBLE PRECISION NOT NULL DEFAULT 0,
  weighted_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  comments TEXT NOT NULL DEFAULT '',
  submission_method TEXT NOT NULL DEFAULT '',
  submitted_at BIGINT
);
CREATE INDEX IF NOT EXISTS idx_evaluations_admin ON evaluations(administration_id, status);
CREATE INDEX IF NOT EXISTS idx_evaluations_result ON evaluations(result_id, status);

CREATE TABLE IF NOT EXISTS evaluation_ratings (
  id TEXT PRIMARY KEY,
  evaluation_id TEXT NOT NULL REFERENCES evaluations(id),
  content_id TEXT NOT NULL,
  answer_option_id TEXT NOT NULL DEFAULT '',
  rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
  score DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ratings_evaluation ON evaluation_ratings(evaluation_id);

CREATE TABLE IF NOT EXISTS evaluation_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  evaluee_role TEXT NOT NULL,
  evaluator_role TEXT NOT NULL,
  rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  answer_scale_id TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS evaluation_template_contents (
  id TEXT PRIMARY KEY,
  template_id TEXT NOT NULL REFERENCES evaluation_templates(id),
  name TEXT NOT NULL,
  rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  sequence_no INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS answer_options (
  id TEXT PRIMARY KEY,
  scale_id TEXT NOT NULL,
  name TEXT NOT NULL,
  rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  sequence_no INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS score_ratings (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  min_score DOUBLE PRECISION NOT NULL,
  max_score DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  is_hr INTEGER NOT NULL DEFAULT 0,
  is_bod INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS external_evaluators (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT '',
  access_code_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS project_members (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL REFERENCES projects(id),
  user_id TEXT NOT NULL,
  project_role TEXT NOT NULL,
  allocation_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  start_date BIGINT NOT NULL,
  end_date BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);
CREATE INDEX IF NOT EXISTS idx_members_project ON project_members(project_id);

CREATE TABLE IF NOT EXISTS email_logs (
  id TEXT PRIMARY KEY,
  recipient TEXT NOT NULL,
  subject TEXT NOT NULL,
  body TEXT NOT NULL,
  status TEXT NOT NULL,
  last_error TEXT,
  retries INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  sent_at BIGINT
);
CREATE INDEX IF NOT EXISTS idx_email_logs_status ON email_logs(status, created_at);

CREATE TABLE IF NOT EXISTS activity_logs (
  id BIGSERIAL PRIMARY KEY,
  actor_id TEXT NOT NULL,
  action TEXT NOT NULL,
  path TEXT NOT NULL,
  status INTEGER NOT NULL,
  created_at BIGINT NOT NULL
);
`
