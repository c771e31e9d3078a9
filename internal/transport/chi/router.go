package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/metrics"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// Users maps basic-auth user names to passwords. Empty disables auth.
	Users  map[string]string
	Realm  string
	Logger *zap.Logger
}

// NewRouter mounts the server's handlers behind the standard middleware chain.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(JSONRecoverer(log))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(log))
	r.Use(BasicAuthMiddleware(cfg.Users, cfg.Realm))
	r.Use(metrics.Middleware())

	r.Get("/", s.Page)
	r.Post("/", s.Page)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.APISearch)
		r.Get("/usage", s.GetUsage)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeBadRequest, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}
