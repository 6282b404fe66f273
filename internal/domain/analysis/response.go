package analysis

import "strings"

// ResponseKind tags an AIResponse value
type ResponseKind string

const (
	ResponseText  ResponseKind = "text"
	ResponseError ResponseKind = "error"
)

const echoedPromptMessage = "response echoed the prompt"

// AIResponse is the single response shape written to a session. Value holds the
// answer text for kind "text" and the failure message for kind "error".
type AIResponse struct {
	Kind      ResponseKind `json:"kind"`
	Value     string       `json:"value"`
	PromptID  string       `json:"promptId"`
	Platform  string       `json:"platform,omitempty"`
	Model     string       `json:"model,omitempty"`
	Validated bool         `json:"validated"`
}

// NewTextResponse builds a text response and validates it against the prompt it answers.
func NewTextResponse(p Prompt, platform, model, text string) AIResponse {
	r := AIResponse{
		Kind:     ResponseText,
		Value:    text,
		PromptID: p.ID,
		Platform: platform,
		Model:    model,
	}
	return r.Sanitize(p.PromptText)
}

// NewErrorResponse records a failed provider call for a prompt.
func NewErrorResponse(p Prompt, platform string, err error) AIResponse {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return AIResponse{Kind: ResponseError, Value: msg, PromptID: p.ID, Platform: platform}
}

// Sanitize repairs or rejects a response before it is written. Empty text and text
// that merely repeats the prompt become error responses.
func (r AIResponse) Sanitize(promptText string) AIResponse {
	r.Value = strings.TrimSpace(r.Value)
	if r.Kind != ResponseText {
		r.Kind = ResponseError
		r.Validated = false
		return r
	}
	switch {
	case r.Value == "":
		r.Kind = ResponseError
		r.Value = "empty response"
		r.Validated = false
	case strings.EqualFold(r.Value, strings.TrimSpace(promptText)):
		r.Kind = ResponseError
		r.Value = echoedPromptMessage
		r.Validated = false
	default:
		r.Validated = true
	}
	return r
}

// OK reports whether the response carries usable answer text.
func (r AIResponse) OK() bool { return r.Kind == ResponseText && r.Validated }
