// Package analysis implements the Super User step handlers: each step loads the
// session, performs its external call, merges its own slice and saves.
package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/application"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// Options tune prompt generation and response collection
type Options struct {
	PromptsPerCategory int
	MaxPrompts         int
	// Concurrency bounds in-flight responder calls during complete
	Concurrency int
	// RequestsPerSecond paces responder calls; <= 0 disables pacing
	RequestsPerSecond float64
}

func (o Options) withDefaults() Options {
	if o.PromptsPerCategory <= 0 {
		o.PromptsPerCategory = 3
	}
	if o.MaxPrompts <= 0 {
		o.MaxPrompts = 30
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Service is safe for concurrent use. Steps on the same analysis are serialised.
type Service struct {
	Repo      domain.Repository
	Analyst   ai.Analyst
	Responder ai.Responder
	Reports   domain.ReportStore // optional
	Notifier  domain.Notifier    // optional
	Clock     application.Clock
	Options   Options

	locks   keyedMutex
	limOnce sync.Once
	limiter *rate.Limiter
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *Service) opts() Options { return s.Options.withDefaults() }

func (s *Service) pacer() *rate.Limiter {
	s.limOnce.Do(func() {
		rps := s.Options.RequestsPerSecond
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	})
	return s.limiter
}

// runStep serialises fn on the analysis and records started/completed/failed
// events. The session is loaded for userID first; a missing or foreign
// analysis fails before any event is written.
func (s *Service) runStep(ctx context.Context, userID string, id domain.AnalysisID, step domain.Step, fn func(*domain.Session) error) error {
	unlock := s.locks.Lock(string(id))
	defer unlock()

	a, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("analysis_id", string(id)), zap.String("step", string(step)))
	start := s.now()
	s.emit(ctx, id, domain.EventStepStarted, step, "")
	log.Info("step started")

	if err := fn(a); err != nil {
		s.emit(ctx, id, domain.EventStepFailed, step, err.Error())
		log.Error("step failed", zap.Error(err), zap.Duration("duration", s.now().Sub(start)))
		return err
	}

	s.emit(ctx, id, domain.EventStepCompleted, step, "")
	log.Info("step completed", zap.Duration("duration", s.now().Sub(start)))
	return nil
}

// emit appends to the event log. Event failures never fail the step.
func (s *Service) emit(ctx context.Context, id domain.AnalysisID, typ domain.EventType, step domain.Step, msg string) {
	e := &domain.Event{
		ID:         uuid.NewString(),
		AnalysisID: id,
		Type:       typ,
		Step:       step,
		Message:    msg,
		CreatedAt:  s.now(),
	}
	if err := s.Repo.AppendEvent(context.WithoutCancel(ctx), e); err != nil {
		zap.L().Warn("append step event",
			zap.String("analysis_id", string(id)),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

// save stamps the step bookkeeping and persists the session.
func (s *Service) save(ctx context.Context, a *domain.Session, step domain.Step, status domain.Status) error {
	a.CurrentStep = step
	a.Status = status
	a.UpdatedAt = s.now()
	return s.Repo.Save(ctx, a)
}

// markFailed records a failed step on the session without touching its step data.
func (s *Service) markFailed(ctx context.Context, a *domain.Session, step domain.Step) {
	if err := s.save(context.WithoutCancel(ctx), a, step, domain.StatusFailed); err != nil {
		zap.L().Warn("mark analysis failed", zap.String("analysis_id", string(a.ID)), zap.Error(err))
	}
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
