package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

func TestSlackAnalysisCompleted(t *testing.T) {
	var got struct {
		Text string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &Slack{WebhookURL: srv.URL, DashboardURL: "https://app.example.com/analysis"}
	err := n.AnalysisCompleted(context.Background(), &domain.Session{
		ID:        "a-1",
		Domain:    "acme.com",
		BrandName: "Acme",
		AnalysisResults: &domain.Results{
			BrandShare:        40,
			AIVisibilityScore: 75,
			TotalMentions:     10,
			Competitors:       []string{"Globex", "Initech"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, got.Text, "*Acme* (acme.com)")
	assert.Contains(t, got.Text, "share of voice 40.00%")
	assert.Contains(t, got.Text, "across 2 competitors")
	assert.Contains(t, got.Text, "<https://app.example.com/analysis/a-1|view>")
}

func TestSlackAnalysisCompleted_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := &Slack{WebhookURL: srv.URL}
	err := n.AnalysisCompleted(context.Background(), &domain.Session{ID: "a-1", BrandName: "Acme"})
	assert.Error(t, err)
}
