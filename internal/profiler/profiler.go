// Package profiler exposes net/http/pprof on a dedicated listener,
// separate from the webhook server, and only when explicitly enabled.
package profiler

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/kadvik/mrev/internal/logger"
)

// Server serves the pprof endpoints on its own address.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// New creates a pprof server bound to addr (e.g. "localhost:6060").
func New(addr string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &Server{
		srv: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// No WriteTimeout: CPU profiles stream for ?seconds=N.
		},
		log: log,
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.log.Info("pprof listening on %s", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("pprof server: %v", err)
		}
	}()
}

// Stop shuts the listener down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the pprof mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
