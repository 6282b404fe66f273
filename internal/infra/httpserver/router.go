package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	appanalysis "github.com/SnowballHQ/geo-optimizer-sub002/internal/application/analysis"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/report"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/middleware"
)

// BasePath of the super user analysis routes
const BasePath = "/api/v1/super-user/analysis"

const maxBodyBytes = 1 << 20

// Options configure the router's middleware
type Options struct {
	// APIKeys maps super user id to API key
	APIKeys map[string]string
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	HealthCheckers map[string]middleware.HealthChecker
	// EventPoll is how often an SSE stream checks for new step events
	EventPoll time.Duration
}

type Router struct {
	svc       *appanalysis.Service
	eventPoll time.Duration
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	r := &Router{svc: svc, eventPoll: opts.EventPoll}
	if r.eventPoll <= 0 {
		r.eventPoll = time.Second
	}

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Get("/readyz", middleware.ReadinessHandler(opts.HealthCheckers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route(BasePath, func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		if opts.RateLimiter != nil {
			rt.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
		}

		rt.Post("/create", r.wrap(r.handleCreate))
		rt.Post("/update", r.wrap(r.step(domain.StepUpdate, r.update)))
		rt.Post("/generate-prompts", r.wrap(r.step(domain.StepGeneratePrompts, r.generatePrompts)))
		rt.Post("/complete", r.wrap(r.step(domain.StepComplete, r.complete)))
		rt.Post("/extract-mentions", r.wrap(r.step(domain.StepExtractMentions, r.extractMentions)))
		rt.Post("/calculate-sov", r.wrap(r.step(domain.StepCalculateSOV, r.calculateSOV)))

		rt.Get("/history", r.wrap(r.handleHistory))
		rt.Get("/{analysisId}", r.wrap(r.handleGet))
		rt.Get("/{analysisId}/responses", r.wrap(r.handleResponses))
		rt.Get("/{analysisId}/events", r.wrap(r.handleEvents))
		rt.Get("/{analysisId}/download-pdf", r.wrap(r.download(report.PDF{}, "pdf")))
		rt.Get("/{analysisId}/download-xlsx", r.wrap(r.download(report.XLSX{}, "xlsx")))
		rt.Delete("/{analysisId}", r.wrap(r.handleDelete))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, msg := classify(err)
			if status >= http.StatusInternalServerError {
				zap.L().Error("request failed",
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.Error(err))
			}
			middleware.WriteError(w, status, msg, err.Error())
		}
	}
}

// classify maps domain and provider errors to HTTP status codes.
func classify(err error) (int, string) {
	switch {
	case eris.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "analysis not found"
	case eris.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case eris.Is(err, domain.ErrNotReady):
		return http.StatusConflict, "analysis not completed"
	case eris.Is(err, ai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "ai quota exceeded"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// stepRequest is the body shared by the POST step routes
type stepRequest struct {
	AnalysisID         string   `json:"analysisId"`
	Domain             string   `json:"domain"`
	BrandName          string   `json:"brandName"`
	Categories         []string `json:"categories"`
	Competitors        []string `json:"competitors"`
	PromptsPerCategory int      `json:"promptsPerCategory"`
}

func decodeStep(req *http.Request, needID bool) (stepRequest, error) {
	var body stepRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return body, eris.Wrapf(domain.ErrInvalidInput, "decode body: %v", err)
	}
	if needID {
		if err := middleware.ValidateAnalysisID(body.AnalysisID); err != nil {
			return body, eris.Wrap(domain.ErrInvalidInput, err.Error())
		}
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func analysisID(req *http.Request) (domain.AnalysisID, error) {
	id := chi.URLParam(req, "analysisId")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return "", eris.Wrap(domain.ErrInvalidInput, err.Error())
	}
	return domain.AnalysisID(id), nil
}

// POST /create
// Body: {"domain": "example.com", "brandName": "optional"}
func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	body, err := decodeStep(req, false)
	if err != nil {
		return err
	}
	brand, err := middleware.ValidateBrandName(body.BrandName)
	if err != nil {
		return eris.Wrap(domain.ErrInvalidInput, err.Error())
	}

	done := middleware.TrackStep(string(domain.StepCreate))
	a, err := r.svc.Create(req.Context(), appanalysis.CreateCommand{
		UserID:    middleware.GetUserFromContext(req.Context()),
		Domain:    middleware.SanitizeString(body.Domain),
		BrandName: brand,
	})
	done(err)
	if err != nil {
		return err
	}
	middleware.AnalysisCreated()
	return writeJSON(w, http.StatusCreated, a)
}

type stepFunc func(req *http.Request, user string, body stepRequest) (*domain.Session, error)

// step decodes the common body, runs fn and returns the whole session.
func (r *Router) step(name domain.Step, fn stepFunc) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
		body, err := decodeStep(req, true)
		if err != nil {
			return err
		}

		done := middleware.TrackStep(string(name))
		a, err := fn(req, middleware.GetUserFromContext(req.Context()), body)
		done(err)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, a)
	}
}

func (r *Router) update(req *http.Request, user string, body stepRequest) (*domain.Session, error) {
	categories, err := middleware.ValidateNames("categories", body.Categories)
	if err != nil {
		return nil, eris.Wrap(domain.ErrInvalidInput, err.Error())
	}
	competitors, err := middleware.ValidateNames("competitors", body.Competitors)
	if err != nil {
		return nil, eris.Wrap(domain.ErrInvalidInput, err.Error())
	}
	return r.svc.Update(req.Context(), appanalysis.UpdateCommand{
		UserID:      user,
		ID:          domain.AnalysisID(body.AnalysisID),
		Categories:  categories,
		Competitors: competitors,
	})
}

func (r *Router) generatePrompts(req *http.Request, user string, body stepRequest) (*domain.Session, error) {
	if body.PromptsPerCategory < 0 || body.PromptsPerCategory > 10 {
		return nil, eris.Wrap(domain.ErrInvalidInput, "promptsPerCategory must be between 0 and 10")
	}
	return r.svc.GeneratePrompts(req.Context(), appanalysis.GeneratePromptsCommand{
		UserID:             user,
		ID:                 domain.AnalysisID(body.AnalysisID),
		PromptsPerCategory: body.PromptsPerCategory,
	})
}

func (r *Router) complete(req *http.Request, user string, body stepRequest) (*domain.Session, error) {
	a, err := r.svc.Complete(req.Context(), user, domain.AnalysisID(body.AnalysisID))
	if err == nil {
		middleware.AnalysisCompleted()
	}
	return a, err
}

func (r *Router) extractMentions(req *http.Request, user string, body stepRequest) (*domain.Session, error) {
	return r.svc.ExtractMentions(req.Context(), user, domain.AnalysisID(body.AnalysisID))
}

func (r *Router) calculateSOV(req *http.Request, user string, body stepRequest) (*domain.Session, error) {
	return r.svc.CalculateSOV(req.Context(), user, domain.AnalysisID(body.AnalysisID))
}

// GET /history?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.History(req.Context(), middleware.GetUserFromContext(req.Context()),
		middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /{analysisId}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	a, err := r.svc.Get(req.Context(), middleware.GetUserFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /{analysisId}/responses
func (r *Router) handleResponses(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	list, err := r.svc.Responses(req.Context(), middleware.GetUserFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// DELETE /{analysisId}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	if err := r.svc.Delete(req.Context(), middleware.GetUserFromContext(req.Context()), id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"msg": "analysis deleted", "analysisId": id})
}

// GET /{analysisId}/download-pdf and /download-xlsx
func (r *Router) download(renderer domain.Renderer, ext string) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		id, err := analysisID(req)
		if err != nil {
			return err
		}
		data, err := r.svc.Export(req.Context(), middleware.GetUserFromContext(req.Context()), id, renderer, ext)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", renderer.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="super-user-analysis-%s.%s"`, id, ext))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(data)
		return err
	}
}

// GET /{analysisId}/events?after=
// JSON list by default, a server-sent event stream with Accept: text/event-stream.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	user := middleware.GetUserFromContext(req.Context())
	after, _ := strconv.ParseInt(req.URL.Query().Get("after"), 10, 64)
	if v := req.Header.Get("Last-Event-ID"); v != "" {
		after, _ = strconv.ParseInt(v, 10, 64)
	}

	events, err := r.svc.Events(req.Context(), user, id, after, 0)
	if err != nil {
		return err
	}
	if !strings.Contains(req.Header.Get("Accept"), "text/event-stream") {
		if events == nil {
			events = []domain.Event{}
		}
		return writeJSON(w, http.StatusOK, events)
	}
	return r.streamEvents(w, req, user, id, after, events)
}

func (r *Router) streamEvents(w http.ResponseWriter, req *http.Request, user string, id domain.AnalysisID, after int64, events []domain.Event) error {
	rc := http.NewResponseController(w)
	// steps can outlast the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(r.eventPoll)
	defer ticker.Stop()

	var follow domain.Follower
	for {
		for _, e := range events {
			data, err := json.Marshal(e)
			if err != nil {
				return nil
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Type, data); err != nil {
				return nil
			}
			after = e.Seq
			follow.Add(e)
		}
		if err := rc.Flush(); err != nil {
			return nil
		}
		if len(events) < domain.EventPageSize && follow.Settled() {
			return nil
		}

		select {
		case <-req.Context().Done():
			return nil
		case <-ticker.C:
		}

		var err error
		events, err = r.svc.Events(req.Context(), user, id, after, 0)
		if err != nil {
			zap.L().Warn("event stream", zap.String("analysis_id", string(id)), zap.Error(err))
			return nil
		}
	}
}
