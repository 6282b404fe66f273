package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

const (
	maxListItems   = 20
	maxItemLength  = 100
	maxBrandLength = 120
)

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{1,64}$`)

// ValidateUserID validates super user id format
func ValidateUserID(user string) error {
	if user == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if !userIDPattern.MatchString(user) {
		return fmt.Errorf("invalid user ID format (alphanumeric, dot, at, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateAnalysisID checks the id is a uuid
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("analysisId cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid analysisId format")
	}
	return nil
}

// ValidateBrandName sanitizes an optional brand name
func ValidateBrandName(name string) (string, error) {
	name = SanitizeString(name)
	if utf8.RuneCountInString(name) > maxBrandLength {
		return "", fmt.Errorf("brandName longer than %d characters", maxBrandLength)
	}
	return name, nil
}

// ValidateNames sanitizes a caller-supplied category or competitor list
func ValidateNames(field string, items []string) ([]string, error) {
	if len(items) > maxListItems {
		return nil, fmt.Errorf("%s: at most %d entries allowed", field, maxListItems)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = SanitizeString(it)
		if it == "" {
			continue
		}
		if utf8.RuneCountInString(it) > maxItemLength {
			return nil, fmt.Errorf("%s: %q longer than %d characters", field, string([]rune(it)[:20]), maxItemLength)
		}
		out = append(out, it)
	}
	return out, nil
}

// ValidateLimit validates pagination page size
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 10 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage validates the 1-based page number
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
