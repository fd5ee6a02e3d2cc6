package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/altsecops/findings-console/internal/application/triage"
	domain "github.com/altsecops/findings-console/internal/domain/findings"
	"github.com/altsecops/findings-console/internal/domain/pipelines"
	"github.com/altsecops/findings-console/internal/infra/storage"
	"github.com/altsecops/findings-console/internal/middleware"
)

type Router struct {
	svc   *triage.Service
	store *storage.Store // optional export artifact store
}

// NewRouter mounts the console API. store may be nil; exports are then only
// streamed, never uploaded. health maps check names to upstream/database
// probes surfaced on /health.
func NewRouter(svc *triage.Service, store *storage.Store, apiKeys map[string]string, log *slog.Logger, health map[string]middleware.HealthChecker) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{svc: svc, store: store}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(apiKeys))
	mux.Use(middleware.RateLimitMiddleware(60, 20))

	mux.Get("/health", middleware.HealthHandler(health))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/view", r.wrap(r.handleView))
		rt.Post("/filter", r.wrap(r.handleSetFilter))
		rt.Post("/verdict-filter", r.wrap(r.handleVerdictFilter))
		rt.Post("/window", r.wrap(r.handleWindow))
		rt.Post("/retry", r.wrap(r.handleRetry))
		rt.Post("/export", r.wrap(r.handleExport))
		rt.Post("/pipelines/refresh", r.wrap(r.handleRefreshPipelines))
		rt.Post("/pipelines/{id}/export-ai", r.wrap(r.handleExportAI))
		rt.Post("/findings/{id}/active", r.wrap(r.handleSetActive))
		rt.Post("/findings/{id}/notes", r.wrap(r.handleAddNote))
		rt.Get("/snippet", r.wrap(r.handleSnippet))
		rt.Get("/notifications", r.wrap(r.handleNotifications))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				http.Error(w, ve.Error(), http.StatusBadRequest)
				return
			}
			if domain.IsRetryable(err) {
				// Transport failures are retryable with the same cursor.
				w.Header().Set("Retry-After", "5")
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			if errors.Is(err, domain.ErrEmptyExport) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// GET /v1/view
func (r *Router) handleView(w http.ResponseWriter, req *http.Request) error {
	middleware.SetStaleDiscarded(r.svc.StaleDrops())
	return writeJSON(w, r.svc.View())
}

// POST /v1/filter
func (r *Router) handleSetFilter(w http.ResponseWriter, req *http.Request) error {
	var f domain.Filter
	if err := json.NewDecoder(req.Body).Decode(&f); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	if err := r.svc.SetFilter(req.Context(), f); err != nil {
		return err
	}
	middleware.IncrementPagesFetched()
	return writeJSON(w, r.svc.View())
}

// POST /v1/verdict-filter
func (r *Router) handleVerdictFilter(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	if err := r.svc.SetVerdictFilter(triage.VerdictFilter(body.Verdict)); err != nil {
		return err
	}
	return writeJSON(w, r.svc.View())
}

// POST /v1/window
func (r *Router) handleWindow(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		LastVisible int `json:"last_visible"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	triggered, err := r.svc.OnWindow(req.Context(), body.LastVisible)
	if err != nil {
		return err
	}
	if triggered {
		middleware.IncrementPagesFetched()
	}
	return writeJSON(w, map[string]any{
		"triggered": triggered,
		"view":      r.svc.View(),
	})
}

// POST /v1/retry
func (r *Router) handleRetry(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.Retry(req.Context()); err != nil {
		return err
	}
	middleware.IncrementPagesFetched()
	return writeJSON(w, r.svc.View())
}

// POST /v1/export?upload=true
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	if req.URL.Query().Get("upload") == "true" && r.store != nil {
		var buf bytes.Buffer
		if err := r.svc.ExportCSV(&buf); err != nil {
			if errors.Is(err, domain.ErrEmptyExport) {
				middleware.IncrementExportsEmpty()
			}
			return err
		}
		url, err := r.store.UploadExport(req.Context(), triage.ExportFilename, buf.Bytes())
		if err != nil {
			return err
		}
		middleware.IncrementExports()
		return writeJSON(w, map[string]string{"url": url})
	}

	var buf bytes.Buffer
	if err := r.svc.ExportCSV(&buf); err != nil {
		if errors.Is(err, domain.ErrEmptyExport) {
			middleware.IncrementExportsEmpty()
		}
		return err
	}
	middleware.IncrementExports()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+triage.ExportFilename+`"`)
	_, err := w.Write(buf.Bytes())
	return err
}

// POST /v1/pipelines/refresh
func (r *Router) handleRefreshPipelines(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ProductID int64 `json:"product_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	if err := r.svc.RefreshPipelines(req.Context(), body.ProductID); err != nil {
		return err
	}
	return writeJSON(w, r.svc.View())
}

// POST /v1/pipelines/{id}/export-ai
func (r *Router) handleExportAI(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidatePipelineID(id); err != nil {
		return &domain.ValidationError{Field: "id", Reason: err.Error()}
	}
	job, err := r.svc.ExportAIResults(req.Context(), pipelines.PipelineID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, job)
}

// POST /v1/findings/{id}/active
func (r *Router) handleSetActive(w http.ResponseWriter, req *http.Request) error {
	id, err := findingID(req)
	if err != nil {
		return err
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	f, err := r.svc.SetFindingActive(req.Context(), id, body.Active)
	if err != nil {
		return err
	}
	return writeJSON(w, f)
}

// POST /v1/findings/{id}/notes
func (r *Router) handleAddNote(w http.ResponseWriter, req *http.Request) error {
	id, err := findingID(req)
	if err != nil {
		return err
	}
	var body struct {
		Entry string `json:"entry"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	if err := middleware.ValidateNoteEntry(body.Entry); err != nil {
		return &domain.ValidationError{Field: "entry", Reason: err.Error()}
	}
	note, err := r.svc.AddNote(req.Context(), id, body.Entry)
	if err != nil {
		return err
	}
	return writeJSON(w, note)
}

// GET /v1/snippet?version=&file_path=&line=
func (r *Router) handleSnippet(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	path := q.Get("file_path")
	if err := middleware.ValidateSnippetPath(path); err != nil {
		return &domain.ValidationError{Field: "file_path", Reason: err.Error()}
	}
	line, _ := strconv.Atoi(q.Get("line"))
	snip, err := r.svc.GetSnippet(req.Context(), q.Get("version"), path, line)
	if err != nil {
		return err
	}
	return writeJSON(w, snip)
}

// GET /v1/notifications
func (r *Router) handleNotifications(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, r.svc.Notifications())
}

func findingID(req *http.Request) (domain.FindingID, error) {
	raw := chi.URLParam(req, "id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, &domain.ValidationError{Field: "id", Reason: "finding id must be a positive integer"}
	}
	return domain.FindingID(n), nil
}
