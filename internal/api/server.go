// Package api provides the HTTP API server and handlers for atomshelf.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/ratelimit"
	"github.com/atomshelf/atomshelf-server/internal/service"
	"github.com/atomshelf/atomshelf-server/internal/sse"
	"github.com/atomshelf/atomshelf-server/internal/validation"
)

// Services groups the business services used by handlers.
// Any of them may be nil in tests; the routes that need a missing service
// answer 503.
type Services struct {
	Gallery  *service.GalleryService
	Taxonomy *service.TaxonomyService
	Search   *service.SearchService
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// WriteLimiter throttles mutating requests per client IP. Nil disables it.
	WriteLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        *collection.Store
	services     *Services
	sseManager   *sse.Manager
	sseHandler   *sse.Handler
	writeLimiter *ratelimit.KeyedRateLimiter
	validator    *validation.Validator
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *collection.Store, services *Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	if services == nil {
		services = &Services{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		store:        st,
		services:     services,
		sseManager:   sseManager,
		writeLimiter: opts.WriteLimiter,
		validator:    validation.New(),
		router:       chi.NewRouter(),
		logger:       logger,
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
	}

	s.setupMiddleware(opts.AllowedOrigins)

	config := huma.DefaultConfig("Atomshelf API", "1.0.0")
	config.Info.Description = "Media catalog of atoms, tags, categories and creators."
	s.api = humachi.New(s.router, config)
	RegisterErrorHandler()

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures the middleware stack. chi requires it to be
// in place before the first route is added.
func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.writeLimiter != nil {
		s.router.Use(rateLimitWrites(s.writeLimiter, s.logger))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerProxyRoutes()
	s.registerAtomRoutes()
	s.registerTagRoutes()
	s.registerCategoryRoutes()
	s.registerCreatorRoutes()
	s.registerSettingsRoutes()
	s.registerGalleryRoutes()
	s.registerSearchRoutes()

	// SSE streams do not fit huma's request/response model.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}
