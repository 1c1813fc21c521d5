package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/livevisitors/backend/internal/config"
	"github.com/livevisitors/backend/internal/metrics"
	"github.com/livevisitors/backend/internal/mock"
	"github.com/livevisitors/backend/internal/page"
	"github.com/livevisitors/backend/internal/stream"
	"github.com/livevisitors/backend/internal/visitor"
	"github.com/livevisitors/backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	mockMode := flag.Bool("mock", false, "Keep a crowd of simulated visitors connected")
	mockPattern := flag.String("mock-pattern", "wave", "Simulated crowd shape: steady, burst or wave")
	mockVisitors := flag.Int("mock-visitors", 5, "Baseline number of simulated visitors")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	for _, change := range config.Diff(config.Default(), cfg) {
		log.Printf("config: %s", change)
	}

	registry := visitor.NewRegistry()
	collector := metrics.New(registry)
	hub := stream.NewHub(registry, cfg.Stream.MaxConnections, stream.Options{
		PollInterval: cfg.Stream.PollInterval,
		OnEmit: func(s *stream.Session, _ int64) {
			collector.EventEmitted(s.Transport)
		},
		OnClose: func(s *stream.Session) {
			collector.SessionClosed(s.Transport, s.Duration())
		},
	})

	renderer, err := page.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to load page template: %v", err)
	}

	server := ws.NewServer(cfg, registry, hub, renderer, collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mockMode {
		pattern, err := mock.ParsePattern(*mockPattern)
		if err != nil {
			log.Fatalf("Invalid -mock-pattern: %v", err)
		}
		log.Printf("Starting in mock mode (%s, %d visitors)", pattern, *mockVisitors)
		gen := mock.NewGenerator(hub, mock.Options{Pattern: pattern, Visitors: *mockVisitors})
		gen.Start(ctx)
	}

	if err := server.ListenAndServe(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
