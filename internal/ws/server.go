package ws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/livevisitors/backend/internal/config"
	"github.com/livevisitors/backend/internal/metrics"
	"github.com/livevisitors/backend/internal/page"
	"github.com/livevisitors/backend/internal/stream"
	"github.com/livevisitors/backend/internal/visitor"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	// Log receives connection lifecycle lines. Defaults to log.Default().
	Log *log.Logger

	cfg            *config.Config
	registry       *visitor.Registry
	hub            *stream.Hub
	renderer       *page.Renderer
	metrics        *metrics.Collector
	proc           *procSampler
	privacy        *PrivacyFilter
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func NewServer(cfg *config.Config, registry *visitor.Registry, hub *stream.Hub, renderer *page.Renderer, collector *metrics.Collector) *Server {
	s := &Server{
		Log:            log.Default(),
		cfg:            cfg,
		registry:       registry,
		hub:            hub,
		renderer:       renderer,
		metrics:        collector,
		proc:           newProcSampler(),
		privacy:        NewPrivacyFilter(cfg.Privacy),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// Handler returns the routed HTTP handler: the page, both stream
// transports, status, metrics, and a plain 404 for everything else.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/sse", s.handleSSE).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	if s.cfg.Metrics.Enabled {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(notFound)

	return securityHeaders(r)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := page.View{
		Address: page.ClientAddress(r, s.cfg.Page.TrustForwardedFor, s.cfg.Page.AddressPlaceholder),
		Owner:   s.cfg.Page.Owner,
		Total:   s.registry.ReadAndIncrementTotal(),
		Active:  s.registry.CurrentActive(),
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, view); err != nil {
		s.Log.Printf("page render error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, "Not Found")
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On shutdown every
// live stream session is closed first so streaming handlers return, then
// the HTTP server drains within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		// WriteTimeout stays zero: streams are unbounded.
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Log.Printf("Server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		n := s.hub.CloseAll()
		s.Log.Printf("Shutting down, closed %d live sessions", n)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
