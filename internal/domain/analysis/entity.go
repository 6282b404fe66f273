package analysis

import "time"

// AnalysisID identifier type
type AnalysisID string

// Status tracks how far the pipeline got for a session
type Status string

const (
	StatusCreated        Status = "created"
	StatusLandscapeReady Status = "landscape_ready"
	StatusPromptsReady   Status = "prompts_ready"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Step names the pipeline step that last wrote to a session
type Step string

const (
	StepCreate          Step = "create"
	StepUpdate          Step = "update"
	StepGeneratePrompts Step = "generate-prompts"
	StepComplete        Step = "complete"
	StepExtractMentions Step = "extract-mentions"
	StepCalculateSOV    Step = "calculate-sov"
)

// Session is the AnalysisSession document accumulating every step output of one
// Super User run. Each step writes only its own slice.
type Session struct {
	ID               AnalysisID `json:"analysisId"`
	UserID           string     `json:"userId"`
	Domain           string     `json:"domain"`
	BrandName        string     `json:"brandName"`
	BrandInformation string     `json:"brandInformation"`
	Status           Status     `json:"status"`
	CurrentStep      Step       `json:"currentStep"`

	Step1Data *Step1Data `json:"step1Data,omitempty"`
	Step2Data *Step2Data `json:"step2Data,omitempty"`
	Step3Data *Step3Data `json:"step3Data,omitempty"`
	Step4Data *Step4Data `json:"step4Data,omitempty"`

	AnalysisResults     *Results            `json:"analysisResults,omitempty"`
	PopulatedCategories []PopulatedCategory `json:"populatedCategories,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Step1Data brand setup output
type Step1Data struct {
	Domain      string `json:"domain"`
	BrandName   string `json:"brandName"`
	Description string `json:"description"`
	Industry    string `json:"industry,omitempty"`
}

// Step2Data category extraction + competitor discovery output
type Step2Data struct {
	Categories  []Category `json:"categories"`
	Competitors []string   `json:"competitors"`
}

// Category is a business category the brand competes in
type Category struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Step3Data prompt generation output
type Step3Data struct {
	Prompts []Prompt `json:"prompts"`
}

// Prompt is a question sent to an AI platform on behalf of a category
type Prompt struct {
	ID         string `json:"_id"`
	CategoryID string `json:"categoryId"`
	Category   string `json:"category"`
	PromptText string `json:"promptText"`
}

// Step4Data AI response collection output
type Step4Data struct {
	Platform  string       `json:"platform"`
	Responses []AIResponse `json:"responses"`
}

// Results is the final analysisResults object. Share of voice and mention maps
// are keyed by brand display name.
type Results struct {
	ShareOfVoice      map[string]float64 `json:"shareOfVoice"`
	MentionCounts     map[string]int     `json:"mentionCounts"`
	TotalMentions     int                `json:"totalMentions"`
	BrandShare        float64            `json:"brandShare"`
	AIVisibilityScore float64            `json:"aiVisibilityScore"`
	Competitors       []string           `json:"competitors"`
	Categories        []string           `json:"categories"`
	Prompts           []string           `json:"prompts"`
	BrandID           string             `json:"brandId"`
}

// PopulatedCategory joins a category with its prompts and their responses
type PopulatedCategory struct {
	ID      string            `json:"_id"`
	Name    string            `json:"name"`
	Prompts []PopulatedPrompt `json:"prompts"`
}

// PopulatedPrompt is a prompt with its response attached
type PopulatedPrompt struct {
	ID         string      `json:"_id"`
	PromptText string      `json:"promptText"`
	AIResponse *AIResponse `json:"aiResponse,omitempty"`
}

// Page of sessions for history listing
type Page struct {
	Data       []*Session `json:"data"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"total_pages"`
}

// Categories returns the category names recorded by step 2.
func (s *Session) Categories() []string {
	if s.Step2Data == nil {
		return nil
	}
	out := make([]string, 0, len(s.Step2Data.Categories))
	for _, c := range s.Step2Data.Categories {
		out = append(out, c.Name)
	}
	return out
}

// Competitors returns the competitor names recorded by step 2.
func (s *Session) Competitors() []string {
	if s.Step2Data == nil {
		return nil
	}
	return s.Step2Data.Competitors
}

// Prompts returns the prompts recorded by step 3.
func (s *Session) Prompts() []Prompt {
	if s.Step3Data == nil {
		return nil
	}
	return s.Step3Data.Prompts
}

// Responses returns the responses recorded by step 4.
func (s *Session) Responses() []AIResponse {
	if s.Step4Data == nil {
		return nil
	}
	return s.Step4Data.Responses
}
