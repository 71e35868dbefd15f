package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server wraps the chi router with the middleware chain every route
// shares. Handlers are mounted separately so tests can wire their own.
type Server struct {
	mux            *chi.Mux
	requestTimeout time.Duration
}

func New() *Server {
	s := &Server{mux: chi.NewRouter(), requestTimeout: 15 * time.Second}

	s.mux.Use(chimw.RealIP)
	s.mux.Use(chimw.RequestID)
	s.mux.Use(chimw.Recoverer)
	s.mux.Use(Timeout(s.requestTimeout))
	s.mux.Use(Metrics)
	s.mux.Use(AccessLog(log.Logger))

	return s
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches an extra handler (e.g. /metrics) outside the v1 routes.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
