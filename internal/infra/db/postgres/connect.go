package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return db, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS super_user_analyses (
  id           TEXT PRIMARY KEY,
  user_id      TEXT NOT NULL,
  domain       TEXT NOT NULL,
  brand_name   TEXT NOT NULL DEFAULT '-',
  status       TEXT NOT NULL,
  current_step TEXT NOT NULL,
  document     JSONB NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL,
  updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON super_user_analyses (user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS super_user_analysis_events (
  seq         BIGSERIAL PRIMARY KEY,
  id          TEXT NOT NULL UNIQUE,
  analysis_id TEXT NOT NULL,
  type        TEXT NOT NULL,
  step        TEXT NOT NULL,
  message     TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_analysis_seq ON super_user_analysis_events (analysis_id, seq);`

// Migrate creates the tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, migration)
	return eris.Wrap(err, "postgres: migrate")
}

func stringOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func decodeSession(doc []byte) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal session")
	}
	return &s, nil
}
