package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetUserFromContext(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"admin": "k-admin", "ops": "k-ops"})(echoUser())

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"bearer", "/api", "Bearer k-ops", http.StatusOK, "ops"},
		{"bare key", "/api", "k-admin", http.StatusOK, "admin"},
		{"missing header", "/api", "", http.StatusUnauthorized, ""},
		{"wrong key", "/api", "Bearer nope", http.StatusUnauthorized, ""},
		{"health is public", "/health", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
				return
			}
			var body ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "unauthorized", body.Msg)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(2, 0)
	defer rl.Stop()
	h := APIKeyAuth(map[string]string{"a": "ka", "b": "kb"})(RateLimitMiddleware(rl)(echoUser()))

	call := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call("ka"))
	assert.Equal(t, http.StatusOK, call("ka"))
	assert.Equal(t, http.StatusTooManyRequests, call("ka"))
	// buckets are per user
	assert.Equal(t, http.StatusOK, call("kb"))
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"database": CheckFunc(func(context.Context) error { return nil }),
		"storage":  CheckFunc(func(context.Context) error { return errors.New("bucket missing") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["database"].Status)
	assert.Equal(t, "bucket missing", status.Checks["storage"].Message)
}

func TestReadinessHandler(t *testing.T) {
	h := ReadinessHandler(map[string]HealthChecker{
		"database": CheckFunc(func(context.Context) error { return nil }),
		"storage":  CheckFunc(func(context.Context) error { return errors.New("bucket missing") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.NotContains(t, status.Checks, "storage")
}

func TestMetricsMiddleware(t *testing.T) {
	before := GetMetrics()["requests_failed"].(uint64)
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, before+1, GetMetrics()["requests_failed"].(uint64))
}

func TestWrappedWriterUnwraps(t *testing.T) {
	rec := httptest.NewRecorder()
	var inner http.ResponseWriter
	h := LoggingMiddleware(MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for {
			u, ok := w.(interface{ Unwrap() http.ResponseWriter })
			if !ok {
				break
			}
			w = u.Unwrap()
		}
		inner = w
	})))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Same(t, rec, inner)
}

func TestTrackStep(t *testing.T) {
	done := TrackStep("test-step")
	assert.EqualValues(t, 1, Steps()["test-step"].Running)
	done(nil)
	TrackStep("test-step")(errors.New("openai: boom"))

	s := Steps()["test-step"]
	assert.EqualValues(t, 0, s.Running)
	assert.EqualValues(t, 1, s.Succeeded)
	assert.EqualValues(t, 1, s.Failed)
	assert.GreaterOrEqual(t, s.AvgSeconds, 0.0)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateAnalysisID("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Error(t, ValidateAnalysisID("../etc/passwd"))
	assert.Error(t, ValidateAnalysisID(""))

	assert.NoError(t, ValidateUserID("super.user@snowball"))
	assert.Error(t, ValidateUserID("bad user"))

	names, err := ValidateNames("competitors", []string{" Globex ", "", "Init\x00ech"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Globex", "Initech"}, names)

	_, err = ValidateNames("categories", make([]string, 21))
	assert.Error(t, err)
	_, err = ValidateNames("categories", []string{strings.Repeat("x", 101)})
	assert.Error(t, err)

	_, err = ValidateBrandName(strings.Repeat("b", 121))
	assert.Error(t, err)

	assert.Equal(t, 10, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 1, ValidatePage(-3))
}
