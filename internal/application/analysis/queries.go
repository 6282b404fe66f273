package analysis

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

const maxPageSize = 100

// Get returns one session of the user.
func (s *Service) Get(ctx context.Context, userID string, id domain.AnalysisID) (*domain.Session, error) {
	return s.Repo.Get(ctx, userID, id)
}

// History lists the user's sessions, newest first.
func (s *Service) History(ctx context.Context, userID string, page, pageSize int) (domain.Page, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.Repo.Paginate(ctx, userID, page, pageSize)
}

// PromptRef is the populated prompt reference of a response record
type PromptRef struct {
	ID         string `json:"_id"`
	PromptText string `json:"promptText"`
	CategoryID string `json:"categoryId,omitempty"`
	Category   string `json:"category,omitempty"`
}

// ResponseRecord is one entry of GET /{id}/responses
type ResponseRecord struct {
	ID         string             `json:"_id"`
	PromptID   PromptRef          `json:"promptId"`
	AIResponse *domain.AIResponse `json:"aiResponse"`
}

// Responses lists the stored responses with their prompt populated.
func (s *Service) Responses(ctx context.Context, userID string, id domain.AnalysisID) ([]ResponseRecord, error) {
	a, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	prompts := make(map[string]domain.Prompt, len(a.Prompts()))
	for _, p := range a.Prompts() {
		prompts[p.ID] = p
	}
	out := make([]ResponseRecord, 0, len(a.Responses()))
	for i, r := range a.Responses() {
		p := prompts[r.PromptID]
		out = append(out, ResponseRecord{
			ID:         fmt.Sprintf("%s-%d", a.ID, i),
			PromptID:   PromptRef{ID: r.PromptID, PromptText: p.PromptText, CategoryID: p.CategoryID, Category: p.Category},
			AIResponse: &r,
		})
	}
	return out, nil
}

// Events returns step events after seq, checking ownership first.
func (s *Service) Events(ctx context.Context, userID string, id domain.AnalysisID, afterSeq int64, limit int) ([]domain.Event, error) {
	if _, err := s.Repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > domain.EventPageSize {
		limit = domain.EventPageSize
	}
	return s.Repo.ListEvents(ctx, id, afterSeq, limit)
}

// Export renders a completed session with r. Rendered reports are cached in the
// report store under reports/<user>/<id>.<ext> until the results change.
func (s *Service) Export(ctx context.Context, userID string, id domain.AnalysisID, r domain.Renderer, ext string) ([]byte, error) {
	a, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.StatusCompleted || a.AnalysisResults == nil {
		return nil, eris.Wrapf(domain.ErrNotReady, "analysis %s is %s", id, a.Status)
	}

	key := reportKey(a, ext)
	if s.Reports != nil {
		data, err := s.Reports.Get(ctx, key)
		if err != nil {
			zap.L().Warn("read cached report", zap.String("key", key), zap.Error(err))
		} else if len(data) > 0 {
			return data, nil
		}
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, a); err != nil {
		return nil, err
	}
	if s.Reports != nil {
		if _, err := s.Reports.Put(ctx, key, r.ContentType(), buf.Bytes()); err != nil {
			zap.L().Warn("cache report", zap.String("key", key), zap.Error(err))
		}
	}
	return buf.Bytes(), nil
}

// Delete removes the session and its cached reports.
func (s *Service) Delete(ctx context.Context, userID string, id domain.AnalysisID) error {
	unlock := s.locks.Lock(string(id))
	defer unlock()

	a, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.dropReports(ctx, a)
	zap.L().Info("analysis deleted", zap.String("analysis_id", string(id)), zap.String("user_id", userID))
	return nil
}

// ReportExtensions lists the cached report formats.
var ReportExtensions = []string{"pdf", "xlsx"}

func reportKey(a *domain.Session, ext string) string {
	return fmt.Sprintf("reports/%s/%s.%s", a.UserID, a.ID, strings.TrimPrefix(ext, "."))
}

func (s *Service) dropReports(ctx context.Context, a *domain.Session) {
	if s.Reports == nil {
		return
	}
	for _, ext := range ReportExtensions {
		if err := s.Reports.Remove(ctx, reportKey(a, ext)); err != nil {
			zap.L().Warn("remove cached report", zap.String("analysis_id", string(a.ID)), zap.Error(err))
		}
	}
}
