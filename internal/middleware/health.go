package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the analysis store.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func runChecks(ctx context.Context, checkers map[string]HealthChecker, names []string) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckStatus, len(names)),
	}
	for _, name := range names {
		c, ok := checkers[name]
		if !ok {
			continue
		}
		if err := c.Check(ctx); err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = CheckStatus{Status: "unhealthy", Message: err.Error()}
			continue
		}
		status.Checks[name] = CheckStatus{Status: "healthy"}
	}
	return status
}

func checkHandler(checkers map[string]HealthChecker, names []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := runChecks(ctx, checkers, names)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status) //nolint:errcheck
	}
}

// HealthHandler runs every checker and answers 503 if any fails.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return checkHandler(checkers, names)
}

// ReadinessHandler only needs the database; object storage and Slack are optional.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return checkHandler(checkers, []string{"database"})
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok")) //nolint:errcheck
}
