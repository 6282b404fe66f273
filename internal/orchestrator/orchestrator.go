// Package orchestrator drives one Super User analysis through the gateway's
// steps and reports progress as each step actually finishes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/application"
	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/reconcile"
)

// ErrStepTimeout marks a step whose request timed out.
var ErrStepTimeout = errors.New("step timed out")

// StepError reports which step failed. Steps are attempted once; earlier steps
// are not rolled back.
type StepError struct {
	Step domain.Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// UserMessage is the short text shown to the operator.
func (e *StepError) UserMessage() string {
	if errors.Is(e.Err, ErrStepTimeout) {
		return fmt.Sprintf("The %s step is taking longer than expected. The analysis may still finish on the server; check history in a few minutes.", e.Step)
	}
	var apiErr *APIError
	if errors.As(e.Err, &apiErr) && apiErr.Status == 429 {
		return "The AI provider quota is exhausted. Try again later."
	}
	return fmt.Sprintf("The %s step failed: %v", e.Step, e.Err)
}

var timeoutMarkers = []string{"timeout", "timed out", "deadline exceeded"}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range timeoutMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// ValidateDomain strips scheme and path and checks the hostname.
func ValidateDomain(raw string) (string, error) {
	return domain.NormalizeDomain(raw)
}

// Progress is reported when a step starts and when it finishes.
type Progress struct {
	Step    domain.Step
	Index   int // 1-based
	Total   int
	Done    bool
	Elapsed time.Duration
}

// Result of a finished run
type Result struct {
	AnalysisID string
	Doc        Doc
	View       *reconcile.ViewModel
	Elapsed    time.Duration
}

// Options of a run
type Options struct {
	BrandName          string
	Categories         []string
	Competitors        []string
	PromptsPerCategory int
	// StepTimeout bounds each step request; zero means no per-step bound
	StepTimeout time.Duration
}

// Orchestrator runs the step sequence create, update, generate-prompts,
// complete, then fetches the final session.
type Orchestrator struct {
	Client     *Client
	Clock      application.Clock
	Options    Options
	OnProgress func(Progress)
	OnComplete func(*Result)
}

// Steps in execution order
var Steps = []domain.Step{
	domain.StepCreate,
	domain.StepUpdate,
	domain.StepGeneratePrompts,
	domain.StepComplete,
}

func (o *Orchestrator) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock.Now()
}

// Run validates the domain and executes every step once.
func (o *Orchestrator) Run(ctx context.Context, rawDomain string) (*Result, error) {
	d, err := ValidateDomain(rawDomain)
	if err != nil {
		return nil, err
	}
	start := o.now()
	log := zap.L().With(zap.String("domain", d))

	var id string
	for i, step := range Steps {
		o.report(Progress{Step: step, Index: i + 1, Total: len(Steps), Elapsed: o.now().Sub(start)})

		doc, err := o.runStep(ctx, step, d, id)
		if err != nil {
			log.Error("step failed", zap.String("step", string(step)), zap.String("analysis_id", id), zap.Error(err))
			return nil, err
		}
		if step == domain.StepCreate {
			id, _ = doc["analysisId"].(string)
			if id == "" {
				return nil, &StepError{Step: step, Err: errors.New("gateway returned no analysisId")}
			}
			log = log.With(zap.String("analysis_id", id))
		}

		o.report(Progress{Step: step, Index: i + 1, Total: len(Steps), Done: true, Elapsed: o.now().Sub(start)})
	}

	doc, err := o.Client.Get(ctx, id)
	if err != nil {
		return nil, &StepError{Step: "fetch", Err: err}
	}
	responses, err := o.Client.Responses(ctx, id)
	if err != nil {
		// the session already carries step4Data; records only help older documents
		log.Warn("fetch responses", zap.Error(err))
	}

	res := &Result{
		AnalysisID: id,
		Doc:        doc,
		View:       reconcile.Reconcile(doc, responses),
		Elapsed:    o.now().Sub(start),
	}
	log.Info("analysis finished", zap.Duration("elapsed", res.Elapsed))
	if o.OnComplete != nil {
		o.OnComplete(res)
	}
	return res, nil
}

func (o *Orchestrator) runStep(ctx context.Context, step domain.Step, d, id string) (Doc, error) {
	if o.Options.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Options.StepTimeout)
		defer cancel()
	}

	var doc Doc
	var err error
	switch step {
	case domain.StepCreate:
		doc, err = o.Client.Create(ctx, d, o.Options.BrandName)
	case domain.StepUpdate:
		doc, err = o.Client.Update(ctx, id, o.Options.Categories, o.Options.Competitors)
	case domain.StepGeneratePrompts:
		doc, err = o.Client.GeneratePrompts(ctx, id, o.Options.PromptsPerCategory)
	case domain.StepComplete:
		doc, err = o.Client.Complete(ctx, id)
	default:
		err = eris.Errorf("unknown step %q", step)
	}
	if err != nil {
		if isTimeout(err) {
			err = fmt.Errorf("%w: %w", ErrStepTimeout, err)
		}
		return nil, &StepError{Step: step, Err: err}
	}
	return doc, nil
}

func (o *Orchestrator) report(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

// Watch polls the step events of an analysis and hands each new one to fn
// until the log settles (see domain.Follower) or ctx ends.
func (o *Orchestrator) Watch(ctx context.Context, id string, interval time.Duration, fn func(domain.Event)) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		after  int64
		follow domain.Follower
	)
	for {
		events, err := o.Client.Events(ctx, id, after)
		if err != nil {
			return err
		}
		for _, e := range events {
			after = e.Seq
			follow.Add(e)
			fn(e)
		}
		if len(events) >= domain.EventPageSize {
			continue
		}
		if follow.Settled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
