package analysis

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"  Example.COM ", "example.com"},
		{"https://www.example.com/pricing?x=1", "example.com"},
		{"http://shop.example.co.uk:8080", "shop.example.co.uk"},
		{"acme-tools.io.", "acme-tools.io"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDomain(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDomain_Invalid(t *testing.T) {
	for _, in := range []string{"", "localhost", "not a domain", "-bad.com", "example", "exa_mple.com"} {
		_, err := NormalizeDomain(in)
		require.Error(t, err, in)
		assert.True(t, eris.Is(err, ErrInvalidInput), in)
		assert.Contains(t, eris.ToString(err, true), "not a valid domain", in)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Example", DisplayName("example.com"))
	assert.Equal(t, "Acme Tools", DisplayName("acme-tools.io"))
}

func TestSanitize(t *testing.T) {
	p := Prompt{ID: "p1", PromptText: "What is the best CRM?"}

	ok := NewTextResponse(p, "perplexity", "sonar", "  Acme is the best CRM.  ")
	assert.Equal(t, ResponseText, ok.Kind)
	assert.Equal(t, "Acme is the best CRM.", ok.Value)
	assert.True(t, ok.OK())

	echo := NewTextResponse(p, "perplexity", "sonar", "what is the best crm?")
	assert.Equal(t, ResponseError, echo.Kind)
	assert.Equal(t, echoedPromptMessage, echo.Value)
	assert.False(t, echo.OK())

	empty := NewTextResponse(p, "perplexity", "sonar", "   ")
	assert.Equal(t, ResponseError, empty.Kind)
	assert.False(t, empty.OK())

	failed := NewErrorResponse(p, "perplexity", errors.New("timeout"))
	assert.Equal(t, "timeout", failed.Value)
	assert.Equal(t, "p1", failed.PromptID)
	assert.False(t, failed.OK())
}
