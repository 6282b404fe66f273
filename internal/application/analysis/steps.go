package analysis

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// minPromptLength matches the shortest prompt text the dashboard will display.
const minPromptLength = 10

// CreateCommand starts a new analysis (brand setup)
type CreateCommand struct {
	UserID    string
	Domain    string
	BrandName string
}

// Create normalises the domain, asks the analyst for a brand profile and saves
// the new session with step1Data.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.Session, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return nil, eris.Wrap(domain.ErrInvalidInput, "user id is required")
	}
	d, err := domain.NormalizeDomain(cmd.Domain)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a := &domain.Session{
		ID:          domain.AnalysisID(uuid.NewString()),
		UserID:      cmd.UserID,
		Domain:      d,
		BrandName:   strings.TrimSpace(cmd.BrandName),
		Status:      domain.StatusCreated,
		CurrentStep: domain.StepCreate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if a.BrandName == "" {
		a.BrandName = domain.DisplayName(d)
	}
	// initial row first so the id is referencable even if the analyst fails
	if err := s.Repo.Save(ctx, a); err != nil {
		return nil, err
	}

	var out *domain.Session
	err = s.runStep(ctx, cmd.UserID, a.ID, domain.StepCreate, func(a *domain.Session) error {
		profile, err := s.Analyst.DescribeBrand(ctx, d, strings.TrimSpace(cmd.BrandName))
		if err != nil {
			s.markFailed(ctx, a, domain.StepCreate)
			return err
		}
		if strings.TrimSpace(cmd.BrandName) == "" && strings.TrimSpace(profile.BrandName) != "" {
			a.BrandName = strings.TrimSpace(profile.BrandName)
		}
		a.BrandInformation = strings.TrimSpace(profile.Description)
		a.Step1Data = &domain.Step1Data{
			Domain:      d,
			BrandName:   a.BrandName,
			Description: a.BrandInformation,
			Industry:    strings.TrimSpace(profile.Industry),
		}
		if err := s.save(ctx, a, domain.StepCreate, domain.StatusCreated); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCommand records categories and competitors. Caller-supplied lists win
// over discovered ones; discovery runs only when a list is missing.
type UpdateCommand struct {
	UserID      string
	ID          domain.AnalysisID
	Categories  []string
	Competitors []string
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*domain.Session, error) {
	var out *domain.Session
	err := s.runStep(ctx, cmd.UserID, cmd.ID, domain.StepUpdate, func(a *domain.Session) error {
		categories := cleanList(cmd.Categories, "")
		competitors := cleanList(cmd.Competitors, a.BrandName)

		if len(categories) == 0 || len(competitors) == 0 {
			land, err := s.Analyst.DiscoverLandscape(ctx, a.Domain, profileOf(a))
			if err != nil {
				s.markFailed(ctx, a, domain.StepUpdate)
				return err
			}
			if len(categories) == 0 {
				categories = cleanList(land.Categories, "")
			}
			if len(competitors) == 0 {
				competitors = cleanList(land.Competitors, a.BrandName)
			}
		}

		step2 := &domain.Step2Data{Competitors: competitors}
		for _, name := range categories {
			step2.Categories = append(step2.Categories, domain.Category{ID: uuid.NewString(), Name: name})
		}
		a.Step2Data = step2
		if err := s.save(ctx, a, domain.StepUpdate, domain.StatusLandscapeReady); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// GeneratePromptsCommand asks for PromptsPerCategory prompts per category (0 = default)
type GeneratePromptsCommand struct {
	UserID             string
	ID                 domain.AnalysisID
	PromptsPerCategory int
}

func (s *Service) GeneratePrompts(ctx context.Context, cmd GeneratePromptsCommand) (*domain.Session, error) {
	opts := s.opts()
	per := cmd.PromptsPerCategory
	if per <= 0 {
		per = opts.PromptsPerCategory
	}

	var out *domain.Session
	err := s.runStep(ctx, cmd.UserID, cmd.ID, domain.StepGeneratePrompts, func(a *domain.Session) error {

		categories := categoriesOf(a)
		names := make([]string, 0, len(categories))
		for _, c := range categories {
			names = append(names, c.Name)
		}

		generated, err := s.Analyst.GeneratePrompts(ctx, profileOf(a), names, per)
		if err != nil {
			s.markFailed(ctx, a, domain.StepGeneratePrompts)
			return err
		}

		a.Step3Data = &domain.Step3Data{Prompts: assignPrompts(categories, generated, opts.MaxPrompts)}
		if err := s.save(ctx, a, domain.StepGeneratePrompts, domain.StatusPromptsReady); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// Complete collects one response per prompt from the responder, then runs
// mention extraction and share of voice. A provider failure on a single prompt
// is stored as an error response; a quota error aborts the whole step.
func (s *Service) Complete(ctx context.Context, userID string, id domain.AnalysisID) (*domain.Session, error) {
	var out *domain.Session
	err := s.runStep(ctx, userID, id, domain.StepComplete, func(a *domain.Session) error {

		responses, err := s.collect(ctx, a.Prompts())
		if err != nil {
			s.markFailed(ctx, a, domain.StepComplete)
			return err
		}

		a.Step4Data = &domain.Step4Data{Platform: s.Responder.Platform(), Responses: responses}
		a.AnalysisResults = ExtractMentions(a)
		CalculateSOV(a.AnalysisResults, a.BrandName)
		a.PopulatedCategories = Populate(a)

		if err := s.save(ctx, a, domain.StepComplete, domain.StatusCompleted); err != nil {
			return err
		}
		s.dropReports(ctx, a)
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, id, domain.EventAnalysisCompleted, domain.StepComplete, "")
	if s.Notifier != nil {
		if err := s.Notifier.AnalysisCompleted(ctx, out); err != nil {
			zap.L().Warn("notify analysis completed", zap.String("analysis_id", string(id)), zap.Error(err))
		}
	}
	return out, nil
}

func (s *Service) collect(ctx context.Context, prompts []domain.Prompt) ([]domain.AIResponse, error) {
	if len(prompts) == 0 {
		return nil, nil
	}
	platform := s.Responder.Platform()
	out := make([]domain.AIResponse, len(prompts))
	limiter := s.pacer()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts().Concurrency)
	for i, p := range prompts {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return eris.Wrap(err, "wait for rate limiter")
			}
			ans, err := s.Responder.Answer(gctx, p.PromptText)
			if err != nil {
				if eris.Is(err, ai.ErrQuotaExceeded) {
					return err
				}
				zap.L().Warn("prompt failed", zap.String("prompt_id", p.ID), zap.Error(err))
				out[i] = domain.NewErrorResponse(p, platform, err)
				return nil
			}
			pf := platform
			if ans.Platform != "" {
				pf = ans.Platform
			}
			out[i] = domain.NewTextResponse(p, pf, ans.Model, ans.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range out {
		if r.Kind == domain.ResponseText {
			return out, nil
		}
	}
	return nil, eris.Errorf("all %d prompts failed, first error: %s", len(out), out[0].Value)
}

// ExtractMentions recounts mentions from the stored responses and leaves the
// share of voice as it was.
func (s *Service) ExtractMentions(ctx context.Context, userID string, id domain.AnalysisID) (*domain.Session, error) {
	return s.recompute(ctx, userID, id, domain.StepExtractMentions, func(a *domain.Session) {
		prev := a.AnalysisResults
		a.AnalysisResults = ExtractMentions(a)
		if prev != nil {
			a.AnalysisResults.ShareOfVoice = prev.ShareOfVoice
			a.AnalysisResults.BrandShare = prev.BrandShare
		}
	})
}

// CalculateSOV recomputes share of voice from the stored mention counts.
func (s *Service) CalculateSOV(ctx context.Context, userID string, id domain.AnalysisID) (*domain.Session, error) {
	return s.recompute(ctx, userID, id, domain.StepCalculateSOV, func(a *domain.Session) {
		if a.AnalysisResults == nil {
			a.AnalysisResults = ExtractMentions(a)
		}
		CalculateSOV(a.AnalysisResults, a.BrandName)
	})
}

func (s *Service) recompute(ctx context.Context, userID string, id domain.AnalysisID, step domain.Step, fn func(*domain.Session)) (*domain.Session, error) {
	var out *domain.Session
	err := s.runStep(ctx, userID, id, step, func(a *domain.Session) error {
		fn(a)
		status := a.Status
		if status == "" {
			status = domain.StatusCompleted
		}
		if err := s.save(ctx, a, step, status); err != nil {
			return err
		}
		s.dropReports(ctx, a)
		out = a
		return nil
	})
	return out, err
}

func profileOf(a *domain.Session) ai.BrandProfile {
	p := ai.BrandProfile{BrandName: a.BrandName, Description: a.BrandInformation}
	if a.Step1Data != nil {
		p.Industry = a.Step1Data.Industry
		if p.Description == "" {
			p.Description = a.Step1Data.Description
		}
	}
	return p
}

// categoriesOf falls back to a single category derived from the brand when
// step 2 never ran.
func categoriesOf(a *domain.Session) []domain.Category {
	if a.Step2Data != nil && len(a.Step2Data.Categories) > 0 {
		return a.Step2Data.Categories
	}
	name := ""
	if a.Step1Data != nil {
		name = a.Step1Data.Industry
	}
	if name == "" {
		name = a.BrandName + " alternatives"
	}
	return []domain.Category{{ID: uuid.NewString(), Name: name}}
}

// assignPrompts ties generated prompts to category ids by case-insensitive name.
// Prompts for unknown categories go to the first category; short and duplicate
// prompts are dropped.
func assignPrompts(categories []domain.Category, generated []ai.GeneratedPrompt, max int) []domain.Prompt {
	byName := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		byName[strings.ToLower(strings.TrimSpace(c.Name))] = c
	}
	seen := make(map[string]bool)
	var out []domain.Prompt
	for _, g := range generated {
		text := strings.TrimSpace(g.Text)
		key := strings.ToLower(text)
		if utf8.RuneCountInString(text) < minPromptLength || seen[key] {
			continue
		}
		seen[key] = true
		c, ok := byName[strings.ToLower(strings.TrimSpace(g.Category))]
		if !ok && len(categories) > 0 {
			c = categories[0]
		}
		out = append(out, domain.Prompt{
			ID:         uuid.NewString(),
			CategoryID: c.ID,
			Category:   c.Name,
			PromptText: text,
		})
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// cleanList trims, dedupes case-insensitively and drops exclude.
func cleanList(items []string, exclude string) []string {
	seen := map[string]bool{}
	if exclude != "" {
		seen[strings.ToLower(strings.TrimSpace(exclude))] = true
	}
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		k := strings.ToLower(it)
		if it == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}
