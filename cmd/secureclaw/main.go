package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
	"github.com/raaihank/secureclaw/internal/embeddings"
	"github.com/raaihank/secureclaw/internal/etl"
	"github.com/raaihank/secureclaw/internal/logger"
	"github.com/raaihank/secureclaw/internal/router"
	"github.com/raaihank/secureclaw/internal/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the gateway at this base URL and exit")
		noWatch     = flag.Bool("no-watch", false, "Do not reload the configuration file on change")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("SecureClaw %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting SecureClaw",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	embedder, closeEmbedder, err := embeddings.New(cfg.Embeddings, log.WithComponent("embeddings").Logger)
	if err != nil {
		log.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer closeEmbedder()

	embeddingType := ""
	var routerEmbedder router.Embedder
	if embedder != nil {
		embeddingType = embedder.Name()
		routerEmbedder = embedder
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	seeds, err := etl.LoadCorpus(ctx, cfg.Corpus, embeddingType, log.WithComponent("corpus").Logger)
	cancel()
	if err != nil {
		log.Fatal("Failed to load seed corpus", zap.Error(err))
	}

	r, err := router.New(seeds, routerEmbedder, cfg.Router, log.WithComponent("router").Logger)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	server.Version = version
	srv, err := server.New(cfg, log, r)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if !*noWatch {
		if err := config.Watch(log.Logger, func(next *config.Config) { _ = srv.Reload(next) }); err != nil {
			log.Info("Configuration hot reload disabled", zap.String("reason", err.Error()))
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error("Server error", zap.Error(err))
			os.Exit(1)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against a running gateway
func performHealthCheck(baseURL string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
