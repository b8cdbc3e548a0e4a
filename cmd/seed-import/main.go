package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
	"github.com/raaihank/secureclaw/internal/corpus"
	"github.com/raaihank/secureclaw/internal/embeddings"
	"github.com/raaihank/secureclaw/internal/etl"
	"github.com/raaihank/secureclaw/internal/logger"
	"github.com/raaihank/secureclaw/internal/vector"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Seed file (CSV, Parquet, JSON, JSON Lines or YAML)")
		builtin    = flag.Bool("builtin", false, "Import the built-in seed corpus")
		batchSize  = flag.Int("batch-size", 100, "Batch size for processing")
		workers    = flag.Int("workers", 4, "Number of embedding goroutines")
		dryRun     = flag.Bool("dry-run", false, "Embed only, don't write to database")
		reembed    = flag.Bool("reembed", false, "Ignore embeddings already present in the input")
		exportPath = flag.String("export-parquet", "", "Write the input seeds to a Parquet file and exit")
		showStats  = flag.Bool("stats", false, "Show seed table statistics and exit")
	)
	flag.Parse()

	if *inputFile == "" && !*builtin && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input seeds.yaml --batch-size 50\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --builtin --export-parquet seeds.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	if *exportPath != "" {
		seeds, err := readSeeds(*inputFile, *builtin)
		if err != nil {
			log.Fatal("Failed to read seeds", zap.Error(err))
		}
		if err := corpus.WriteParquet(*exportPath, seeds); err != nil {
			log.Fatal("Failed to export seeds", zap.Error(err))
		}
		log.Info("Seeds exported", zap.String("file", *exportPath), zap.Int("count", len(seeds)))
		return
	}

	var store *vector.Store
	if !*dryRun || *showStats {
		store, err = vector.NewStore(etl.StoreConfig(cfg.Corpus.Database), log.WithComponent("vector").Logger)
		if err != nil {
			log.Fatal("Failed to initialize seed store", zap.Error(err))
		}
		defer store.Close()
	}

	if *showStats {
		if err := printStats(ctx, store); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
		return
	}

	embedCfg := cfg.Embeddings
	if embedCfg.Backend == embeddings.BackendNone {
		embedCfg.Backend = embeddings.BackendHash
		log.Warn("Embeddings are disabled in configuration, importing with the hash embedder")
	}
	embedder, closeEmbedder, err := embeddings.New(embedCfg, log.WithComponent("embeddings").Logger)
	if err != nil {
		log.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer closeEmbedder()

	var sink etl.SeedSink
	if store != nil {
		sink = store
	}
	pipeline, err := etl.NewPipeline(sink, embedder, etl.Config{
		BatchSize:   *batchSize,
		WorkerCount: *workers,
		DryRun:      *dryRun,
		ReembedAll:  *reembed,
	}, log.WithComponent("etl").Logger)
	if err != nil {
		log.Fatal("Failed to create pipeline", zap.Error(err))
	}

	var result *etl.ProcessingResult
	if *builtin {
		result, err = pipeline.Process(ctx, corpus.Default())
	} else {
		result, err = pipeline.ProcessFile(ctx, *inputFile)
	}
	if err != nil {
		log.Fatal("Seed import failed", zap.Error(err))
	}

	if len(result.Errors) > 0 {
		log.Warn("Import completed with errors", zap.Strings("errors", result.Errors))
		os.Exit(2)
	}
	log.Info("Seed import completed successfully")
}

func readSeeds(path string, builtin bool) ([]corpus.SeedEntry, error) {
	if builtin {
		return corpus.Default(), nil
	}
	return corpus.LoadFile(path)
}

// printStats displays current seed table statistics
func printStats(ctx context.Context, store *vector.Store) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get seed stats: %w", err)
	}

	fmt.Printf("\n=== SecureClaw Seed Table Statistics ===\n")
	fmt.Printf("Total Seeds:        %d\n", stats.TotalVectors)
	if stats.TotalVectors > 0 {
		fmt.Printf("Multi-tool Seeds:   %d (%.1f%%)\n", stats.MultiToolCount,
			float64(stats.MultiToolCount)/float64(stats.TotalVectors)*100)
	}

	types := make([]string, 0, len(stats.ByEmbedding))
	for t := range stats.ByEmbedding {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Printf("\n=== By Embedding Type ===\n")
	for _, t := range types {
		name := t
		if name == "" {
			name = "(none)"
		}
		fmt.Printf("%-20s %d\n", name+":", stats.ByEmbedding[t])
	}
	return nil
}
