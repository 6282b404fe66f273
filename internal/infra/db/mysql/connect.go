package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: open")
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "mysql: ping")
	}
	return db, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS super_user_analyses (
  id           VARCHAR(64)  NOT NULL PRIMARY KEY,
  user_id      VARCHAR(64)  NOT NULL,
  domain       VARCHAR(255) NOT NULL,
  brand_name   VARCHAR(255) NOT NULL DEFAULT '-',
  status       VARCHAR(32)  NOT NULL,
  current_step VARCHAR(32)  NOT NULL,
  document     JSON         NOT NULL,
  created_at   DATETIME(3)  NOT NULL,
  updated_at   DATETIME(3)  NOT NULL,
  INDEX idx_analyses_user_created (user_id, created_at)
);
CREATE TABLE IF NOT EXISTS super_user_analysis_events (
  seq         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  id          VARCHAR(64)  NOT NULL UNIQUE,
  analysis_id VARCHAR(64)  NOT NULL,
  type        VARCHAR(32)  NOT NULL,
  step        VARCHAR(32)  NOT NULL,
  message     TEXT         NOT NULL,
  created_at  DATETIME(3)  NOT NULL,
  INDEX idx_events_analysis_seq (analysis_id, seq)
);`

// Migrate creates the tables when missing. The DSN must enable multiStatements.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, migration)
	return eris.Wrap(err, "mysql: migrate")
}
