package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sipeed/uptimebot/pkg/config"
	"github.com/sipeed/uptimebot/pkg/logger"
)

// ActiveBody is the fixed response an uptime monitor sees on GET /.
const ActiveBody = "Discord bot is active and running!"

// Server answers keep-alive pings from an external uptime monitor.
type Server struct {
	cfg    config.ServerConfig
	router chi.Router
	srv    *http.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

func NewServer(cfg config.ServerConfig) *Server {
	s := &Server{cfg: cfg}
	s.router = s.buildRouter()
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(requestLogger)

	r.Get("/", handleRoot)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Start binds the configured address and serves in the background. A bind
// failure, such as the port already being in use, is returned directly.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("liveness server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	logger.InfoCF("health", "Keep-Alive Web Server is listening", map[string]any{
		"addr": ln.Addr().String(),
	})

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Keep-Alive Web Server stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown liveness server: %w", err)
	}
	if done != nil {
		<-done
	}
	return nil
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ActiveBody))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.DebugCF("health", "Request served", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}
