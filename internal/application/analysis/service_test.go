package analysis

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/db/sqlite"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type fakeAnalyst struct {
	profile      ai.BrandProfile
	landscape    ai.Landscape
	prompts      []ai.GeneratedPrompt
	err          error
	landscapeHit int
	gotCats      []string
}

func (f *fakeAnalyst) DescribeBrand(ctx context.Context, domain, hint string) (ai.BrandProfile, error) {
	return f.profile, f.err
}

func (f *fakeAnalyst) DiscoverLandscape(ctx context.Context, domain string, p ai.BrandProfile) (ai.Landscape, error) {
	f.landscapeHit++
	return f.landscape, f.err
}

func (f *fakeAnalyst) GeneratePrompts(ctx context.Context, p ai.BrandProfile, cats []string, per int) ([]ai.GeneratedPrompt, error) {
	f.gotCats = cats
	return f.prompts, f.err
}

type fakeResponder struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   int
}

func (f *fakeResponder) Platform() string { return "perplexity" }

func (f *fakeResponder) Answer(ctx context.Context, prompt string) (ai.Answer, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errs[prompt]; ok {
		return ai.Answer{}, err
	}
	return ai.Answer{Text: f.answers[prompt], Model: "sonar-pro", Platform: "perplexity"}, nil
}

type fakeNotifier struct {
	got []*domain.Session
	err error
}

func (f *fakeNotifier) AnalysisCompleted(ctx context.Context, s *domain.Session) error {
	f.got = append(f.got, s)
	return f.err
}

type memStore struct {
	objects map[string][]byte
	puts    int
}

func (m *memStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	m.puts++
	m.objects[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) { return m.objects[key], nil }

func (m *memStore) Remove(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type textRenderer struct{ renders int }

func (r *textRenderer) ContentType() string { return "text/plain" }

func (r *textRenderer) Render(w io.Writer, s *domain.Session) error {
	r.renders++
	_, err := io.WriteString(w, s.BrandName)
	return err
}

const (
	qBest  = "What is the best CRM for small teams?"
	qEmail = "Which CRM integrates well with email?"
	qCheap = "What is the cheapest CRM for startups?"
)

func newTestService(t *testing.T) (*Service, *fakeAnalyst, *fakeResponder, *fakeNotifier, *memStore) {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() }) //nolint:errcheck
	require.NoError(t, repo.Migrate(context.Background()))

	analyst := &fakeAnalyst{
		profile:   ai.BrandProfile{BrandName: "Acme", Description: "Acme builds CRM software.", Industry: "CRM software"},
		landscape: ai.Landscape{Categories: []string{"CRM software", "Email tools"}, Competitors: []string{"Globex", "Initech", "acme"}},
		prompts: []ai.GeneratedPrompt{
			{Category: "CRM software", Text: qBest},
			{Category: "email tools", Text: qEmail},
			{Category: "Unknown", Text: qCheap},
			{Category: "CRM software", Text: "short"},
			{Category: "CRM software", Text: qBest},
		},
	}
	responder := &fakeResponder{
		answers: map[string]string{
			qBest:  "Acme and Globex are both good. Acme is simpler than Globex.",
			qEmail: "Initech integrates with email; Acme-style tools also do.",
			qCheap: "Globex has a free plan.",
		},
	}
	notifier := &fakeNotifier{}
	store := &memStore{objects: map[string][]byte{}}
	svc := &Service{
		Repo:      repo,
		Analyst:   analyst,
		Responder: responder,
		Reports:   store,
		Notifier:  notifier,
		Clock:     fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
		Options:   Options{Concurrency: 2},
	}
	return svc, analyst, responder, notifier, store
}

func runPipeline(t *testing.T, svc *Service) *domain.Session {
	t.Helper()
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "https://www.acme.com/"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, UpdateCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)
	_, err = svc.GeneratePrompts(ctx, GeneratePromptsCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)
	done, err := svc.Complete(ctx, "u1", a.ID)
	require.NoError(t, err)
	return done
}

func TestCreate(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	a, err := svc.Create(context.Background(), CreateCommand{UserID: "u1", Domain: "https://www.acme.com/pricing"})
	require.NoError(t, err)

	assert.Equal(t, "acme.com", a.Domain)
	assert.Equal(t, "Acme", a.BrandName)
	assert.Equal(t, "Acme builds CRM software.", a.BrandInformation)
	assert.Equal(t, domain.StatusCreated, a.Status)
	require.NotNil(t, a.Step1Data)
	assert.Equal(t, "CRM software", a.Step1Data.Industry)

	got, err := svc.Get(context.Background(), "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.BrandInformation, got.BrandInformation)
}

func TestCreate_InvalidDomain(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateCommand{UserID: "u1", Domain: "not a domain"})
	assert.True(t, eris.Is(err, domain.ErrInvalidInput))
}

func TestCreate_AnalystFailureMarksFailed(t *testing.T) {
	svc, analyst, _, _, _ := newTestService(t)
	analyst.err = errors.New("openai: boom")
	_, err := svc.Create(context.Background(), CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.Error(t, err)

	page, err := svc.History(context.Background(), "u1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, domain.StatusFailed, page.Data[0].Status)

	events, err := svc.Events(context.Background(), "u1", page.Data[0].ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStepFailed, events[1].Type)
	assert.Equal(t, "openai: boom", events[1].Message)
}

func TestUpdate_CallerListsSkipDiscovery(t *testing.T) {
	svc, analyst, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, UpdateCommand{
		UserID:      "u1",
		ID:          a.ID,
		Categories:  []string{" Billing ", "billing", ""},
		Competitors: []string{"Globex", "Acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, analyst.landscapeHit)
	assert.Equal(t, []string{"Billing"}, got.Categories())
	assert.Equal(t, []string{"Globex"}, got.Competitors())
	assert.Equal(t, domain.StatusLandscapeReady, got.Status)
}

func TestUpdate_DiscoversMissingLists(t *testing.T) {
	svc, analyst, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, UpdateCommand{UserID: "u1", ID: a.ID, Competitors: []string{"Hooli"}})
	require.NoError(t, err)
	assert.Equal(t, 1, analyst.landscapeHit)
	assert.Equal(t, []string{"CRM software", "Email tools"}, got.Categories())
	assert.Equal(t, []string{"Hooli"}, got.Competitors())
}

func TestUpdate_NotFoundForOtherUser(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateCommand{UserID: "u2", ID: a.ID})
	assert.True(t, eris.Is(err, domain.ErrNotFound))
}

func TestStep_ForeignUserWritesNoEvents(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)
	before, err := svc.Events(ctx, "u1", a.ID, 0, 0)
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateCommand{UserID: "u2", ID: a.ID})
	assert.True(t, eris.Is(err, domain.ErrNotFound))
	_, err = svc.Complete(ctx, "u2", a.ID)
	assert.True(t, eris.Is(err, domain.ErrNotFound))
	_, err = svc.Update(ctx, UpdateCommand{UserID: "u1", ID: "0f8fad5b-d9cb-469f-a165-70867728950e"})
	assert.True(t, eris.Is(err, domain.ErrNotFound))

	after, err := svc.Events(ctx, "u1", a.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestStep_RerunAfterFailureSettlesOnCompletion(t *testing.T) {
	svc, analyst, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)

	analyst.err = errors.New("openai: 500")
	_, err = svc.Update(ctx, UpdateCommand{UserID: "u1", ID: a.ID})
	require.Error(t, err)
	analyst.err = nil

	_, err = svc.Update(ctx, UpdateCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)
	_, err = svc.GeneratePrompts(ctx, GeneratePromptsCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, "u1", a.ID)
	require.NoError(t, err)

	events, err := svc.Events(ctx, "u1", a.ID, 0, 0)
	require.NoError(t, err)

	var (
		follow  domain.Follower
		settled []domain.EventType
	)
	for _, e := range events {
		follow.Add(e)
		if follow.Settled() {
			settled = append(settled, e.Type)
		}
	}
	// the failed update settles only while it is the latest event
	assert.Equal(t, []domain.EventType{domain.EventStepFailed, domain.EventAnalysisCompleted}, settled)
	assert.True(t, follow.Settled())
}

func TestGeneratePrompts(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)
	a, err = svc.Update(ctx, UpdateCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)

	got, err := svc.GeneratePrompts(ctx, GeneratePromptsCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)
	prompts := got.Prompts()
	require.Len(t, prompts, 3, "short and duplicate prompts are dropped")

	cats := a.Step2Data.Categories
	assert.Equal(t, cats[0].ID, prompts[0].CategoryID)
	assert.Equal(t, cats[1].ID, prompts[1].CategoryID, "category names match case-insensitively")
	assert.Equal(t, cats[0].ID, prompts[2].CategoryID, "unknown categories fall back to the first")
	assert.Equal(t, domain.StatusPromptsReady, got.Status)
}

func TestGeneratePrompts_NoCategoriesUsesIndustry(t *testing.T) {
	svc, analyst, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)

	got, err := svc.GeneratePrompts(ctx, GeneratePromptsCommand{UserID: "u1", ID: a.ID, PromptsPerCategory: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"CRM software"}, analyst.gotCats)
	for _, p := range got.Prompts() {
		assert.Equal(t, "CRM software", p.Category)
	}
}

func TestCompletePipeline(t *testing.T) {
	svc, _, responder, notifier, _ := newTestService(t)
	a := runPipeline(t, svc)

	assert.Equal(t, domain.StatusCompleted, a.Status)
	assert.Equal(t, domain.StepComplete, a.CurrentStep)
	assert.Equal(t, 3, responder.calls)
	require.NotNil(t, a.Step4Data)
	assert.Equal(t, "perplexity", a.Step4Data.Platform)
	require.Len(t, a.Step4Data.Responses, 3)
	for _, r := range a.Step4Data.Responses {
		assert.True(t, r.OK())
	}

	res := a.AnalysisResults
	require.NotNil(t, res)
	// "Acme-style" counts: the hyphen is a word boundary
	assert.Equal(t, map[string]int{"Acme": 3, "Globex": 3, "Initech": 1}, res.MentionCounts)
	assert.Equal(t, 7, res.TotalMentions)
	assert.Equal(t, 42.86, res.BrandShare)
	assert.Equal(t, 42.86, res.ShareOfVoice["Globex"])
	assert.Equal(t, 14.29, res.ShareOfVoice["Initech"])
	assert.Equal(t, 66.67, res.AIVisibilityScore)
	assert.Equal(t, []string{"Globex", "Initech"}, res.Competitors)
	assert.NotEmpty(t, res.BrandID)

	sum := 0
	for _, c := range res.MentionCounts {
		sum += c
	}
	assert.Equal(t, res.TotalMentions, sum)

	require.Len(t, a.PopulatedCategories, 2)
	assert.Len(t, a.PopulatedCategories[0].Prompts, 2)
	assert.Len(t, a.PopulatedCategories[1].Prompts, 1)
	for _, c := range a.PopulatedCategories {
		for _, p := range c.Prompts {
			require.NotNil(t, p.AIResponse)
			assert.NotEqual(t, p.PromptText, p.AIResponse.Value)
		}
	}

	require.Len(t, notifier.got, 1)

	events, err := svc.Events(context.Background(), "u1", a.ID, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventAnalysisCompleted, last.Type)
	assert.True(t, last.Terminal())
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

func TestComplete_PartialFailureStoresErrorResponse(t *testing.T) {
	svc, _, responder, _, _ := newTestService(t)
	responder.errs = map[string]error{qEmail: errors.New("perplexity: unexpected status 500")}
	responder.answers[qCheap] = qCheap // echoed prompt

	a := runPipeline(t, svc)
	byPrompt := map[string]domain.AIResponse{}
	texts := map[string]string{}
	for _, p := range a.Prompts() {
		texts[p.ID] = p.PromptText
	}
	for _, r := range a.Responses() {
		byPrompt[texts[r.PromptID]] = r
	}
	assert.True(t, byPrompt[qBest].OK())
	assert.Equal(t, domain.ResponseError, byPrompt[qEmail].Kind)
	assert.Contains(t, byPrompt[qEmail].Value, "unexpected status 500")
	assert.Equal(t, domain.ResponseError, byPrompt[qCheap].Kind)
	assert.Equal(t, 100.0, a.AnalysisResults.AIVisibilityScore)
}

func TestComplete_QuotaAborts(t *testing.T) {
	svc, _, responder, notifier, _ := newTestService(t)
	responder.errs = map[string]error{qEmail: eris.Wrap(ai.ErrQuotaExceeded, "perplexity: rate limited")}
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, UpdateCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)
	_, err = svc.GeneratePrompts(ctx, GeneratePromptsCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, "u1", a.ID)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ai.ErrQuotaExceeded))
	assert.Empty(t, notifier.got)

	got, err := svc.Get(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotNil(t, got.Step3Data, "earlier step data is kept")
	assert.Nil(t, got.Step4Data)
}

func TestComplete_AllFail(t *testing.T) {
	svc, _, responder, _, _ := newTestService(t)
	boom := errors.New("connection reset")
	responder.errs = map[string]error{qBest: boom, qEmail: boom, qCheap: boom}
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)
	_, err = svc.GeneratePrompts(ctx, GeneratePromptsCommand{UserID: "u1", ID: a.ID})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, "u1", a.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestComplete_NoPrompts(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)

	got, err := svc.Complete(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AnalysisResults.TotalMentions)
	assert.Equal(t, 0.0, got.AnalysisResults.BrandShare)
}

func TestRecomputeSteps(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	a := runPipeline(t, svc)
	ctx := context.Background()

	got, err := svc.ExtractMentions(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.AnalysisResults.MentionCounts, got.AnalysisResults.MentionCounts)
	assert.Equal(t, a.AnalysisResults.ShareOfVoice, got.AnalysisResults.ShareOfVoice)
	assert.Equal(t, domain.StepExtractMentions, got.CurrentStep)

	got, err = svc.CalculateSOV(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.AnalysisResults.BrandShare, got.AnalysisResults.BrandShare)
	assert.Equal(t, domain.StepCalculateSOV, got.CurrentStep)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestResponses(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	a := runPipeline(t, svc)

	records, err := svc.Responses(context.Background(), "u1", a.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, r.AIResponse.PromptID, r.PromptID.ID)
		assert.NotEmpty(t, r.PromptID.PromptText)
	}
}

func TestExport_CachesUntilResultsChange(t *testing.T) {
	svc, _, _, _, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: "acme.com"})
	require.NoError(t, err)
	r := &textRenderer{}
	_, err = svc.Export(ctx, "u1", created.ID, r, "pdf")
	assert.True(t, eris.Is(err, domain.ErrNotReady))

	a := runPipeline(t, svc)
	data, err := svc.Export(ctx, "u1", a.ID, r, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "Acme", string(data))
	_, err = svc.Export(ctx, "u1", a.ID, r, "pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, r.renders)
	assert.Equal(t, 1, store.puts)

	_, err = svc.CalculateSOV(ctx, "u1", a.ID)
	require.NoError(t, err)
	_, err = svc.Export(ctx, "u1", a.ID, r, "pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, r.renders)
}

func TestDelete(t *testing.T) {
	svc, _, _, _, store := newTestService(t)
	a := runPipeline(t, svc)
	ctx := context.Background()
	_, err := svc.Export(ctx, "u1", a.ID, &textRenderer{}, "xlsx")
	require.NoError(t, err)

	assert.True(t, eris.Is(svc.Delete(ctx, "u2", a.ID), domain.ErrNotFound))
	require.NoError(t, svc.Delete(ctx, "u1", a.ID))
	_, err = svc.Get(ctx, "u1", a.ID)
	assert.True(t, eris.Is(err, domain.ErrNotFound))
	assert.Empty(t, store.objects)
}

func TestHistoryClampsPaging(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	for _, d := range []string{"acme.com", "globex.com"} {
		_, err := svc.Create(ctx, CreateCommand{UserID: "u1", Domain: d})
		require.NoError(t, err)
	}
	page, err := svc.History(ctx, "u1", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, maxPageSize, page.PageSize)
	assert.EqualValues(t, 2, page.Total)
}

func TestCountMentions(t *testing.T) {
	tests := []struct {
		text, name string
		want       int
	}{
		{"Acme, acme and ACME.", "Acme", 3},
		{"Acmeville is not Acme", "Acme", 1},
		{"Monday.com beats monday.com", "monday.com", 2},
		{"ＡＣＭＥ full-width", "Acme", 1},
		{"Straße and STRASSE", "strasse", 2},
		{"", "Acme", 0},
		{"Acme", "  ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, CountMentions(tt.text, tt.name))
		})
	}
}

func TestExtractMentions_LongestNameWins(t *testing.T) {
	a := &domain.Session{
		BrandName: "Acme",
		Step2Data: &domain.Step2Data{Competitors: []string{"Acme Cloud", "Globex"}},
		Step3Data: &domain.Step3Data{Prompts: []domain.Prompt{{ID: "p1", PromptText: qBest}}},
		Step4Data: &domain.Step4Data{Responses: []domain.AIResponse{
			domain.NewTextResponse(domain.Prompt{ID: "p1", PromptText: qBest}, "perplexity", "sonar-pro",
				"Acme Cloud beats Globex. Acme itself is older."),
		}},
	}
	r := ExtractMentions(a)
	assert.Equal(t, map[string]int{"Acme": 1, "Acme Cloud": 1, "Globex": 1}, r.MentionCounts)
	assert.Equal(t, 3, r.TotalMentions)
}

func TestCalculateSOV_ZeroTotal(t *testing.T) {
	r := &domain.Results{MentionCounts: map[string]int{"Acme": 0, "Globex": 0}}
	CalculateSOV(r, "Acme")
	assert.Equal(t, 0.0, r.BrandShare)
	assert.Equal(t, map[string]float64{"Acme": 0, "Globex": 0}, r.ShareOfVoice)
}

func TestKeyedMutexSerialises(t *testing.T) {
	var k keyedMutex
	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
	assert.Empty(t, k.locks)
}

func TestAssignPromptsCap(t *testing.T) {
	cats := []domain.Category{{ID: "c1", Name: "CRM"}}
	var gen []ai.GeneratedPrompt
	for i := 0; i < 10; i++ {
		gen = append(gen, ai.GeneratedPrompt{Category: "CRM", Text: strings.Repeat("q", 10+i)})
	}
	assert.Len(t, assignPrompts(cats, gen, 4), 4)
}
