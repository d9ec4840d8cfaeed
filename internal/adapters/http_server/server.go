package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const DefaultRequestTimeout = 15 * time.Second

type Server struct{ mux *chi.Mux }

// New builds the router; middlewares must be registered before any route.
// Request handling is cut off after reqTimeout (DefaultRequestTimeout if <= 0).
func New(reqTimeout time.Duration) *Server {
	if reqTimeout <= 0 {
		reqTimeout = DefaultRequestTimeout
	}
	m := chi.NewRouter()

	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(reqTimeout))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
