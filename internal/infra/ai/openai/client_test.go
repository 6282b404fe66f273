package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func newTestClient(t *testing.T, status int, body string, seen *map[string]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient("sk-test", "", srv.URL+"/v1")
}

func TestDescribeBrand(t *testing.T) {
	var req map[string]any
	c := newTestClient(t, http.StatusOK,
		completion("```json\n{\"brandName\":\"Acme Tools\",\"description\":\"CRM for teams\",\"industry\":\"CRM software\"}\n```"), &req)

	p, err := c.DescribeBrand(context.Background(), "acme.com", "")
	require.NoError(t, err)
	assert.Equal(t, ai.BrandProfile{BrandName: "Acme Tools", Description: "CRM for teams", Industry: "CRM software"}, p)
	assert.Equal(t, defaultModel, req["model"])
	assert.Equal(t, "json_object", req["response_format"].(map[string]any)["type"])
}

func TestDescribeBrand_HintWins(t *testing.T) {
	c := newTestClient(t, http.StatusOK, completion(`{"brandName":"acme","description":"d"}`), nil)
	p, err := c.DescribeBrand(context.Background(), "acme.com", " Acme Inc ")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", p.BrandName)
}

func TestDiscoverLandscape(t *testing.T) {
	c := newTestClient(t, http.StatusOK, completion(`{
		"categories": ["CRM", "crm", "Email", "Sales", "Support", "Marketing", "Billing"],
		"competitors": ["Globex", "Acme", "Initech", " globex "]
	}`), nil)

	l, err := c.DiscoverLandscape(context.Background(), "acme.com", ai.BrandProfile{BrandName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CRM", "Email", "Sales", "Support", "Marketing"}, l.Categories)
	assert.Equal(t, []string{"Globex", "Initech"}, l.Competitors)
}

func TestGeneratePrompts(t *testing.T) {
	c := newTestClient(t, http.StatusOK, completion(`{"prompts":[{"category":"CRM","text":"What is the best CRM?"}]}`), nil)
	got, err := c.GeneratePrompts(context.Background(), ai.BrandProfile{BrandName: "Acme"}, []string{"CRM"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []ai.GeneratedPrompt{{Category: "CRM", Text: "What is the best CRM?"}}, got)
}

func TestAnswer(t *testing.T) {
	var req map[string]any
	c := newTestClient(t, http.StatusOK, completion("Acme and Globex are common picks."), &req)
	a, err := c.Answer(context.Background(), "best CRM?")
	require.NoError(t, err)
	assert.Equal(t, "Acme and Globex are common picks.", a.Text)
	assert.Equal(t, platformName, a.Platform)
	assert.Nil(t, req["response_format"])
}

func TestAnswer_Errors(t *testing.T) {
	c := newTestClient(t, http.StatusTooManyRequests,
		`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`, nil)
	_, err := c.Answer(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ai.ErrQuotaExceeded))

	c = newTestClient(t, http.StatusOK, completion("   "), nil)
	_, err = c.Answer(context.Background(), "q")
	assert.True(t, eris.Is(err, ai.ErrEmptyCompletion))

	c = newTestClient(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil)
	_, err = c.Answer(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, eris.Is(err, ai.ErrQuotaExceeded))
}
