package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyCompletion is returned when a provider answers without any content.
var ErrEmptyCompletion = errors.New("ai returned an empty completion")
