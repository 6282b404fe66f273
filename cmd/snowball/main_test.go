package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/orchestrator"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/reconcile"
)

const sessionDoc = `{
  "analysisId": "a-1", "domain": "acme.com", "brandName": "Acme", "status": "completed",
  "createdAt": "2026-05-01T12:00:00Z",
  "analysisResults": {"mentionCounts": {"Acme": 3, "Globex": 1}, "totalMentions": 4,
    "shareOfVoice": {"Acme": 75, "Globex": 25}, "brandShare": 75, "aiVisibilityScore": 50,
    "competitors": ["Globex"]},
  "populatedCategories": [{"_id": "c1", "name": "CRM software", "prompts": [
    {"_id": "p1", "promptText": "What is the best CRM for small teams?"},
    {"_id": "p2", "promptText": "Which CRM has the best free plan?"}]}]
}`

func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"unauthorized","error":"invalid api key"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch p := strings.TrimPrefix(r.URL.Path, orchestrator.BasePath); {
		case p == "/history":
			_, _ = w.Write([]byte(`{"data":[` + sessionDoc + `],"page":1,"page_size":10,"total":1,"total_pages":1}`))
		case p == "/a-1" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(sessionDoc))
		case p == "/a-1" && r.Method == http.MethodDelete:
			_, _ = w.Write([]byte(`{"msg":"analysis deleted","analysisId":"a-1"}`))
		case p == "/a-1/responses":
			_, _ = w.Write([]byte(`[{"_id":"r1","promptId":{"_id":"p1"},"aiResponse":{"kind":"text","value":"Acme is the usual pick."}}]`))
		case p == "/a-1/events":
			_, _ = w.Write([]byte(`[{"seq":1,"type":"step.started","step":"complete","createdAt":"2026-05-01T12:00:00Z"},
			  {"seq":2,"type":"analysis.completed","step":"complete","createdAt":"2026-05-01T12:01:00Z"}]`))
		case p == "/a-1/download-pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 report"))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"msg":"analysis not found","error":"not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--server", srv.URL, "--api-key", "k1"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHistoryCommand(t *testing.T) {
	out, err := execute(t, fakeGateway(t), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "acme.com")
	assert.Contains(t, out, "75.00%")
	assert.Contains(t, out, "Page 1 of 1")
}

func TestShowCommand(t *testing.T) {
	srv := fakeGateway(t)

	out, err := execute(t, srv, "show", "a-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme (you)")
	assert.Contains(t, out, "+ ")
	assert.NotContains(t, out, "Acme is the usual pick.")

	out, err = execute(t, srv, "show", "a-1", "--expand", "crm software")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme is the usual pick.")
	assert.Contains(t, out, reconcile.NoResponse)
}

func TestShowCommand_NotFound(t *testing.T) {
	_, err := execute(t, fakeGateway(t), "show", "missing")
	var apiErr *orchestrator.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestEventsCommand(t *testing.T) {
	out, err := execute(t, fakeGateway(t), "events", "a-1", "--follow", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "step.started")
	assert.Contains(t, out, "analysis.completed")
}

func TestDownloadCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	out, err := execute(t, fakeGateway(t), "pdf", "a-1", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	missing := filepath.Join(t.TempDir(), "missing.pdf")
	_, err = execute(t, fakeGateway(t), "pdf", "nope", "-o", missing)
	require.Error(t, err)
	assert.NoFileExists(t, missing)
	assert.NoFileExists(t, missing+".part")
}

func TestDeleteCommand(t *testing.T) {
	out, err := execute(t, fakeGateway(t), "delete", "a-1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted a-1\n", out)
}

func TestAnalyzeCommand_InvalidDomain(t *testing.T) {
	_, err := execute(t, fakeGateway(t), "analyze", "not a domain")
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b   c", 10))
	assert.Equal(t, "abcd…", preview("abcdefgh", 5))
}
