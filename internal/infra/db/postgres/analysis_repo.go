package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

type AnalysisRepository struct{ db *sql.DB }

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

// Save insert/update the whole session document
func (r *AnalysisRepository) Save(ctx context.Context, s *domain.Session) error {
	const q = `
INSERT INTO super_user_analyses
(id, user_id, domain, brand_name, status, current_step, document, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
 brand_name = EXCLUDED.brand_name,
 status = EXCLUDED.status,
 current_step = EXCLUDED.current_step,
 document = EXCLUDED.document,
 updated_at = EXCLUDED.updated_at;`

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	doc, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}
	_, err = r.db.ExecContext(ctx, q,
		s.ID, stringOrDash(s.UserID), s.Domain, stringOrDash(s.BrandName),
		stringOrDash(string(s.Status)), stringOrDash(string(s.CurrentStep)),
		string(doc), s.CreatedAt, s.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: save analysis")
}

// Get by ID + owner
func (r *AnalysisRepository) Get(ctx context.Context, userID string, id domain.AnalysisID) (*domain.Session, error) {
	const q = `SELECT document FROM super_user_analyses WHERE user_id=$1 AND id=$2 LIMIT 1;`
	var doc []byte
	if err := r.db.QueryRowContext(ctx, q, userID, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: get analysis")
	}
	return decodeSession(doc)
}

// Paginate newest first
func (r *AnalysisRepository) Paginate(ctx context.Context, userID string, page, pageSize int) (domain.Page, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT document FROM super_user_analyses
WHERE user_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, userID, pageSize, offset)
	if err != nil {
		return domain.Page{}, eris.Wrap(err, "postgres: query analyses")
	}
	defer rows.Close()

	out := make([]*domain.Session, 0, pageSize)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return domain.Page{}, eris.Wrap(err, "postgres: scan analysis")
		}
		s, err := decodeSession(doc)
		if err != nil {
			return domain.Page{}, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, eris.Wrap(err, "postgres: iterate analyses")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM super_user_analyses WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return domain.Page{}, eris.Wrap(err, "postgres: count analyses")
	}
	return domain.Page{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Delete removes a session and its events
func (r *AnalysisRepository) Delete(ctx context.Context, userID string, id domain.AnalysisID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM super_user_analyses WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		return eris.Wrap(err, "postgres: delete analysis")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM super_user_analysis_events WHERE analysis_id=$1`, id)
	return eris.Wrap(err, "postgres: delete analysis events")
}

// AppendEvent adds one entry to the step log
func (r *AnalysisRepository) AppendEvent(ctx context.Context, e *domain.Event) error {
	const q = `
INSERT INTO super_user_analysis_events (id, analysis_id, type, step, message, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING seq;`
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, q, e.ID, e.AnalysisID, e.Type, stringOrDash(string(e.Step)), e.Message, e.CreatedAt).Scan(&e.Seq)
	return eris.Wrap(err, "postgres: insert event")
}

// ListEvents returns events after the given sequence number, oldest first
func (r *AnalysisRepository) ListEvents(ctx context.Context, id domain.AnalysisID, afterSeq int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT seq, id, analysis_id, type, step, message, created_at
FROM super_user_analysis_events
WHERE analysis_id=$1 AND seq > $2
ORDER BY seq ASC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, id, afterSeq, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query events")
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.Seq, &e.ID, &e.AnalysisID, &e.Type, &e.Step, &e.Message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate events")
}
