package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency probe used by /healthz.
type Check struct {
	Name string
	// Required checks turn the response into 503 when failing.
	Required bool
	Probe    func(ctx context.Context) error
}

// RouterParams groups dependencies for building the ops router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Checks  []Check
}

// NewRouter constructs the ops chi.Router: /healthz and /metrics.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(params.Checks))
		for _, c := range params.Checks {
			if err := c.Probe(ctx); err != nil {
				checks[c.Name] = err.Error()
				if c.Required {
					status = http.StatusServiceUnavailable
				}
				logger.Warn("health check failed", slog.String("check", c.Name), slog.Any("error", err))
				continue
			}
			checks[c.Name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httpx.JSON(w, status, map[string]any{"status": state, "checks": checks})
	})

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "ops endpoints: /healthz, /metrics")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	return r
}

// PingCheck adapts a Pinger into a Check.
func PingCheck(name string, required bool, p Pinger) Check {
	return Check{Name: name, Required: required, Probe: p.Ping}
}
