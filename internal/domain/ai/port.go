package ai

import "context"

// BrandProfile is what the brand setup step learns about a domain
type BrandProfile struct {
	BrandName   string `json:"brandName"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
}

// Landscape holds the categories and competitors of a brand
type Landscape struct {
	Categories  []string `json:"categories"`
	Competitors []string `json:"competitors"`
}

// GeneratedPrompt is a search-style question tied to a category
type GeneratedPrompt struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Answer is one AI platform's reply to a prompt
type Answer struct {
	Text     string
	Model    string
	Platform string
}

// Analyst extracts structured brand data (OpenAI in production)
type Analyst interface {
	DescribeBrand(ctx context.Context, domain, brandHint string) (BrandProfile, error)
	DiscoverLandscape(ctx context.Context, domain string, profile BrandProfile) (Landscape, error)
	GeneratePrompts(ctx context.Context, profile BrandProfile, categories []string, perCategory int) ([]GeneratedPrompt, error)
}

// Responder answers prompts the way an end user's AI assistant would
type Responder interface {
	Platform() string
	Answer(ctx context.Context, prompt string) (Answer, error)
}
