package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/rubywatch/release-index/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Fetcher retrieves the raw release index, usually a *feed.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Server struct {
	router        chi.Router
	log           *logrus.Logger
	feed          Fetcher
	feedSemaphore *semaphore.Weighted
	config        *config.ServerConfig
	cache         *cache.Cache
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method now allowed"))
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"service": "ruby release index",
		"stage":   s.config.Stage,
		"version": s.config.Version,
	})
}

func New(log *logrus.Logger, feed Fetcher, serverCfg *config.ServerConfig) *Server {
	router := chi.NewRouter()
	server := &Server{
		router:        router,
		log:           log,
		feed:          feed,
		feedSemaphore: semaphore.NewWeighted(1),
		config:        serverCfg,
		cache:         cache.New(5*time.Minute, 10*time.Minute),
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.logMiddleware)
	router.Use(server.recoverMiddleware)

	router.Use(middleware.Timeout(5 * time.Minute))

	router.NotFound(server.notFoundHandler)
	router.MethodNotAllowed(server.methodNotAllowedHandler)

	router.Get("/", server.indexHandler)

	router.Route("/api/v1/releases", func(r chi.Router) {
		r.With(server.cacheMiddleware).Group(func(r chi.Router) {
			r.Get("/", server.listReleases)
			r.Get("/{series}", server.getRelease)
		})

		// route to rebuild the report from a fresh fetch
		r.With(server.authMiddleware).Put("/", server.refreshReleases)
	})

	router.Get("/downloads/{series}", server.downloadLatestArtifact)

	return server
}
