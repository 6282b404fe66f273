package mysql

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save insert/update the whole session document
func (r *AnalysisRepository) Save(ctx context.Context, s *domain.Session) error {
	const q = `
INSERT INTO super_user_analyses
(id, user_id, domain, brand_name, status, current_step, document, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 brand_name=VALUES(brand_name), status=VALUES(status), current_step=VALUES(current_step),
 document=VALUES(document), updated_at=VALUES(updated_at);
`
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	doc, err := encodeSession(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		s.ID, stringOrDash(s.UserID), s.Domain, stringOrDash(s.BrandName),
		stringOrDash(string(s.Status)), stringOrDash(string(s.CurrentStep)),
		doc, s.CreatedAt, s.UpdatedAt,
	)
	return eris.Wrap(err, "mysql: save analysis")
}

// Get by ID + owner
func (r *AnalysisRepository) Get(ctx context.Context, userID string, id domain.AnalysisID) (*domain.Session, error) {
	const q = `SELECT document FROM super_user_analyses WHERE user_id=? AND id=? LIMIT 1;`
	var doc []byte
	if err := r.db.QueryRowContext(ctx, q, userID, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, eris.Wrap(err, "mysql: get analysis")
	}
	return decodeSession(doc)
}

// Paginate with offset + limit (classic pagination), newest first
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
WHERE user_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;`
	rows, err := r.db.QueryContext(ctx, q, userID, pageSize, offset)
	if err != nil {
		return domain.Page{}, eris.Wrap(err, "mysql: query analyses")
	}
	defer rows.Close()

	out := make([]*domain.Session, 0, pageSize)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return domain.Page{}, eris.Wrap(err, "mysql: scan analysis")
		}
		s, err := decodeSession(doc)
		if err != nil {
			return domain.Page{}, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, eris.Wrap(err, "mysql: iterate analyses")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM super_user_analyses WHERE user_id=?`, userID).Scan(&total); err != nil {
		return domain.Page{}, eris.Wrap(err, "mysql: count analyses")
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM super_user_analyses WHERE user_id=? AND id=?`, userID, id)
	if err != nil {
		return eris.Wrap(err, "mysql: delete analysis")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM super_user_analysis_events WHERE analysis_id=?`, id)
	return eris.Wrap(err, "mysql: delete analysis events")
}

// AppendEvent adds one entry to the step log
func (r *AnalysisRepository) AppendEvent(ctx context.Context, e *domain.Event) error {
	const q = `
INSERT INTO super_user_analysis_events (id, analysis_id, type, step, message, created_at)
VALUES (?,?,?,?,?,?)`
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q, e.ID, e.AnalysisID, e.Type, stringOrDash(string(e.Step)), e.Message, e.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "mysql: insert event")
	}
	if seq, err := res.LastInsertId(); err == nil {
		e.Seq = seq
	}
	return nil
}

// ListEvents returns events after the given sequence number, oldest first
func (r *AnalysisRepository) ListEvents(ctx context.Context, id domain.AnalysisID, afterSeq int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT seq, id, analysis_id, type, step, message, created_at
FROM super_user_analysis_events
WHERE analysis_id=? AND seq > ?
ORDER BY seq ASC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, id, afterSeq, limit)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: query events")
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.Seq, &e.ID, &e.AnalysisID, &e.Type, &e.Step, &e.Message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "mysql: scan event")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "mysql: iterate events")
}
