package analysis

import (
	"context"
	"io"
)

// Repository persists sessions and their step events
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, userID string, id AnalysisID) (*Session, error)
	Paginate(ctx context.Context, userID string, page, pageSize int) (Page, error)
	Delete(ctx context.Context, userID string, id AnalysisID) error

	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, id AnalysisID, afterSeq int64, limit int) ([]Event, error)
}

// ReportStore caches rendered reports
type ReportStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// Renderer turns a completed session into a downloadable document
type Renderer interface {
	ContentType() string
	Render(w io.Writer, s *Session) error
}

// Notifier announces finished analyses
type Notifier interface {
	AnalysisCompleted(ctx context.Context, s *Session) error
}
