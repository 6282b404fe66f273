// Package sqlite stores analysis sessions in a local SQLite file. It backs
// single-node deployments, the CLI's offline mode and the repository tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// AnalysisRepository implements analysis.Repository on modernc.org/sqlite.
type AnalysisRepository struct {
	db *sql.DB
}

// Open opens a SQLite database at path and configures WAL mode.
func Open(path string) (*AnalysisRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &AnalysisRepository{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS super_user_analyses (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	domain       TEXT NOT NULL,
	brand_name   TEXT NOT NULL DEFAULT '-',
	status       TEXT NOT NULL,
	current_step TEXT NOT NULL,
	document     TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS super_user_analysis_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	analysis_id TEXT NOT NULL,
	type        TEXT NOT NULL,
	step        TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON super_user_analyses(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_events_analysis_seq ON super_user_analysis_events(analysis_id, seq);
`

// Migrate creates the tables when missing.
func (r *AnalysisRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

// DB exposes the handle for health checks.
func (r *AnalysisRepository) DB() *sql.DB { return r.db }

// Close closes the database.
func (r *AnalysisRepository) Close() error { return r.db.Close() }

// Save inserts or replaces the whole session document.
func (r *AnalysisRepository) Save(ctx context.Context, s *domain.Session) error {
	const q = `
INSERT INTO super_user_analyses
(id, user_id, domain, brand_name, status, current_step, document, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
 brand_name = excluded.brand_name,
 status = excluded.status,
 current_step = excluded.current_step,
 document = excluded.document,
 updated_at = excluded.updated_at;`

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	doc, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}
	_, err = r.db.ExecContext(ctx, q,
		s.ID, s.UserID, s.Domain, s.BrandName, s.Status, s.CurrentStep,
		string(doc), s.CreatedAt.UnixMilli(), s.UpdatedAt.UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: save analysis")
}

// Get loads one session owned by userID.
func (r *AnalysisRepository) Get(ctx context.Context, userID string, id domain.AnalysisID) (*domain.Session, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM super_user_analyses WHERE user_id = ? AND id = ?`, userID, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get analysis")
	}
	return decode(doc)
}

// Paginate lists sessions newest first.
func (r *AnalysisRepository) Paginate(ctx context.Context, userID string, page, pageSize int) (domain.Page, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT document FROM super_user_analyses
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return domain.Page{}, eris.Wrap(err, "sqlite: query analyses")
	}
	defer rows.Close()

	out := make([]*domain.Session, 0, pageSize)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return domain.Page{}, eris.Wrap(err, "sqlite: scan analysis")
		}
		s, err := decode(doc)
		if err != nil {
			return domain.Page{}, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, eris.Wrap(err, "sqlite: iterate analyses")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM super_user_analyses WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return domain.Page{}, eris.Wrap(err, "sqlite: count analyses")
	}
	return domain.Page{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Delete removes a session and its events.
func (r *AnalysisRepository) Delete(ctx context.Context, userID string, id domain.AnalysisID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM super_user_analyses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete analysis")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM super_user_analysis_events WHERE analysis_id = ?`, id)
	return eris.Wrap(err, "sqlite: delete analysis events")
}

// AppendEvent adds one entry to the step log and sets e.Seq.
func (r *AnalysisRepository) AppendEvent(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO super_user_analysis_events (id, analysis_id, type, step, message, created_at)
VALUES (?,?,?,?,?,?)`, e.ID, e.AnalysisID, e.Type, e.Step, e.Message, e.CreatedAt.UnixMilli())
	if err != nil {
		return eris.Wrap(err, "sqlite: insert event")
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: event seq")
	}
	e.Seq = seq
	return nil
}

// ListEvents returns events after afterSeq, oldest first.
func (r *AnalysisRepository) ListEvents(ctx context.Context, id domain.AnalysisID, afterSeq int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT seq, id, analysis_id, type, step, message, created_at
FROM super_user_analysis_events
WHERE analysis_id = ? AND seq > ?
ORDER BY seq ASC
LIMIT ?`, id, afterSeq, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query events")
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var created int64
		if err := rows.Scan(&e.Seq, &e.ID, &e.AnalysisID, &e.Type, &e.Step, &e.Message, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate events")
}

func decode(doc string) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal session")
	}
	return &s, nil
}
