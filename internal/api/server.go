// Package api provides an optional, read-only HTTP facade over a
// running host: the catalog, local search index, and installed
// extensions, so other tools on the LAN can browse a library without
// going through the host process directly. Advertised over mDNS by
// internal/discovery when enabled.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inkbound/novelhost/internal/catalog"
	"github.com/inkbound/novelhost/internal/registry"
	"github.com/inkbound/novelhost/internal/search"
	"github.com/inkbound/novelhost/internal/storage"
)

// Server holds dependencies for the read-facade HTTP handlers.
type Server struct {
	catalog  *catalog.Catalog
	search   *search.SearchIndex
	registry *registry.Registry
	storage  *storage.Engine

	router *chi.Mux
	api    huma.API
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes registered. Any
// of catalogDB, searchIndex, reg is allowed to be nil — the
// corresponding routes report "degraded" on /health and the matching
// resource becomes unavailable, rather than the process refusing to
// start.
func NewServer(catalogDB *catalog.Catalog, searchIndex *search.SearchIndex, reg *registry.Registry, storageEngine *storage.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))

	RegisterErrorHandler()

	humaConfig := huma.DefaultConfig("novelhost API", "1.0.0")
	humaConfig.Info.Description = "Read-only facade over a novelhost instance's catalog and search index."

	s := &Server{
		catalog:  catalogDB,
		search:   searchIndex,
		registry: reg,
		storage:  storageEngine,
		router:   router,
		api:      humachi.New(router, humaConfig),
		logger:   logger,
	}

	s.registerHealthRoutes()
	s.registerNovelRoutes()
	s.registerSearchRoutes()
	s.registerExtensionRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// componentHealth describes the health of a single dependency.
type componentHealth struct {
	Status  string `json:"status" doc:"healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Time taken to check this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

func timedHealth(fn func() error) componentHealth {
	start := time.Now()
	err := fn()
	latency := time.Since(start).String()
	if err != nil {
		return componentHealth{Status: "unhealthy", Latency: latency, Message: err.Error()}
	}
	return componentHealth{Status: "healthy", Latency: latency}
}
