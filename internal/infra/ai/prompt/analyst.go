package prompt

import (
	"fmt"
	"strings"
)

// BrandSystemPrompt provides strict directions and schema for the brand setup step.
func BrandSystemPrompt() string {
	return `You are a brand research analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- brandName is the public display name of the company behind the domain, not the domain itself.
- description is two or three sentences describing what the company sells and to whom.
- industry is a short noun phrase (e.g. "project management software").

Schema (example with empty values):
{
  "brandName": "<string>",
  "description": "<string>",
  "industry": "<string>"
}`
}

// BrandUserPrompt builds the user message for the brand setup step.
func BrandUserPrompt(domain, brandHint string) string {
	if strings.TrimSpace(brandHint) != "" {
		return fmt.Sprintf("Describe the brand behind the domain %s. The user says the brand is called %q.", domain, brandHint)
	}
	return fmt.Sprintf("Describe the brand behind the domain %s.", domain)
}

// LandscapeSystemPrompt directs category extraction and competitor discovery.
func LandscapeSystemPrompt(maxCategories, maxCompetitors int) string {
	return fmt.Sprintf(`You are a market analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- categories lists at most %d business categories the brand competes in, phrased the way buyers search (e.g. "CRM for small businesses").
- competitors lists at most %d direct competitors by brand display name. Never include the brand itself.
- No duplicates in either list.

Schema (example with empty values):
{
  "categories": ["<string>"],
  "competitors": ["<string>"]
}`, maxCategories, maxCompetitors)
}

// LandscapeUserPrompt builds the user message for the landscape step.
func LandscapeUserPrompt(domain, brandName, description, industry string) string {
	return fmt.Sprintf("Brand: %s\nDomain: %s\nIndustry: %s\nDescription: %s", brandName, domain, industry, description)
}

// PromptsSystemPrompt directs generation of search-style prompts per category.
func PromptsSystemPrompt(perCategory int) string {
	return fmt.Sprintf(`You write the questions real buyers ask AI assistants when choosing a product. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Write exactly %d prompts for every category given.
- Prompts must not mention the brand by name; they should be neutral recommendation questions.
- Each prompt is a single question of at least 10 characters.

Schema (example with empty values):
{
  "prompts": [
    {"category": "<string>", "text": "<string>"}
  ]
}`, perCategory)
}

// PromptsUserPrompt lists the categories prompts are needed for.
func PromptsUserPrompt(brandName, industry string, categories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand (do not mention it): %s\nIndustry: %s\nCategories:\n", brandName, industry)
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return b.String()
}

// AnswerSystemPrompt makes a responder behave like a consumer AI assistant.
func AnswerSystemPrompt() string {
	return "You are a helpful assistant. Answer the user's question with concrete product or company recommendations and a short reason for each."
}
