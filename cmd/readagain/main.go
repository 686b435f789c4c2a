package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/stanmart1/readagain-reader/internal/api"
	"github.com/stanmart1/readagain-reader/internal/config"
	"github.com/stanmart1/readagain-reader/internal/domain"
	"github.com/stanmart1/readagain-reader/internal/log"
	"github.com/stanmart1/readagain-reader/internal/progress"
	"github.com/stanmart1/readagain-reader/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("readagain %s\n", Version)
		return
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting readagain", "version", Version)

	// Open the process-wide durable store; degrade to memory-only if the
	// cache directory is unusable
	st, err := store.NewReaderStore(cfg.Cache.Dir)
	if err != nil {
		logger.Warn("cache unavailable, running memory-only", "error", err)
		st, _ = store.NewReaderStore("")
	}
	defer st.Close()

	if len(args) == 0 {
		return usage()
	}

	switch args[0] {
	case "cache":
		return runCache(st, args[1:])
	case "sync":
		return runSync(cfg, st, logger)
	default:
		return usage()
	}
}

func usage() error {
	fmt.Println("usage: readagain <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  cache stats    show local asset cache usage")
	fmt.Println("  cache clear    evict every cached asset")
	fmt.Println("  sync           flush queued progress writes to the server")
	return nil
}

func runCache(st domain.Store, args []string) error {
	if len(args) == 0 {
		return usage()
	}

	switch args[0] {
	case "stats":
		stats := st.Stats()
		fmt.Printf("%d cached book(s), %s\n", stats.Count, stats.FormattedSize())
		for _, a := range stats.Assets {
			indexed := ""
			if a.HasIndex {
				indexed = " (indexed)"
			}
			fmt.Printf("  %s  %d bytes, cached %s%s\n",
				a.BookID, a.Size, time.UnixMilli(a.CachedAt).Format(time.RFC3339), indexed)
		}
		return nil
	case "clear":
		if err := st.ClearAssets(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("cache cleared")
		return nil
	default:
		return usage()
	}
}

func runSync(cfg *config.Config, st domain.Store, logger *slog.Logger) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("server URL and token are not configured")
	}

	client := api.NewClient(cfg.Server.URL, cfg.Server.Token, logger)
	queue := progress.NewQueue(st, logger)

	if queue.Len() == 0 {
		fmt.Println("nothing queued")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := queue.Flush(ctx, func(ctx context.Context, m domain.QueuedProgress) error {
		return client.SaveProgress(ctx, m.BookID, m.Fraction, domain.ParseMarker(m.Marker))
	})

	fmt.Printf("synced %d, failed %d\n", result.Synced, result.Failed)
	return nil
}
