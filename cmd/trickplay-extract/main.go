// Command trickplay-extract is a manual test tool for the trickplay engine.
//
// Usage:
//
//	trickplay-extract extract --url https://cdn.example.com/iframes.m3u8 --at 1 --at 12.5 --width 160
//	trickplay-extract scrub --backend synthetic --url synthetic://1280x720 --from 0 --to 30 --step 0.5
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	trickplay "github.com/e7canasta/orion-care-sensor/modules/trickplay"
)

const version = "0.1.0"

var (
	backendName string
	cacheDir    string
	capacity    int
	debug       bool
	metricsAddr string
	purge       bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "trickplay-extract",
	Short:        "Extract keyframe stills from streamed video",
	Long:         "Manual test tool for the trickplay keyframe extraction engine.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&backendName, "backend", string(trickplay.BackendGStreamer), "Decode backend: gstreamer, synthetic")
	flags.StringVar(&cacheDir, "cache-dir", "", "Cache directory (default: $TRICKPLAY_CACHE_DIR or <tmp>/trickplay)")
	flags.IntVar(&capacity, "capacity", 0, "Stills kept in the cache (default: $TRICKPLAY_CACHE_CAPACITY or 10)")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.BoolVar(&purge, "purge", false, "Remove every cached still before running")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trickplay-extract %s\n", version)
	},
}

// newExtractor builds the engine from the environment plus global flags,
// and starts the metrics server when requested.
func newExtractor(ctx context.Context) (*trickplay.Extractor, error) {
	cfg, err := trickplay.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if capacity > 0 {
		cfg.CacheCapacity = capacity
	}

	factory, err := trickplay.FactoryFor(trickplay.BackendKind(backendName))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	cfg.Registerer = reg

	ex, err := trickplay.NewExtractor(cfg, factory)
	if err != nil {
		return nil, err
	}

	if purge {
		slog.Info("Cache purged", "dir", ex.CacheDir(), "removed", ex.PurgeCache())
	}

	if metricsAddr != "" {
		serveMetrics(ctx, reg)
	}

	printBanner(cfg, ex.CacheDir())
	return ex, nil
}

// resolveDescriptor turns relative file paths into absolute ones; URLs pass
// through.
func resolveDescriptor(descriptor string) string {
	if descriptor == "" || strings.Contains(descriptor, "://") || filepath.IsAbs(descriptor) {
		return descriptor
	}
	if abs, err := filepath.Abs(descriptor); err == nil {
		return abs
	}
	return descriptor
}

// optionalPixels maps the flag value 0 to "derive".
func optionalPixels(n int) *int {
	if n == 0 {
		return nil
	}
	return trickplay.Pixels(n)
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("Metrics server listening", "addr", metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func printBanner(cfg trickplay.Config, dir string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║              Trickplay Keyframe Extraction                ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Backend:        %s\n", backendName)
	fmt.Printf("  Cache Dir:      %s\n", dir)
	fmt.Printf("  Cache Capacity: %d stills\n", cfg.CacheCapacity)
	fmt.Printf("  Load Timeout:   %v\n", cfg.LoadTimeout)
	fmt.Printf("  Render Timeout: %v\n", cfg.RenderTimeout)
	fmt.Printf("\n")
}

func printStats(stats trickplay.Stats) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Engine Statistics\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Extractions:        %6d\n", stats.Extractions)
	fmt.Printf("│ Loads:              %6d\n", stats.Loads)
	fmt.Printf("│ Teardowns:          %6d\n", stats.Teardowns)
	fmt.Printf("│ Render Timeouts:    %6d\n", stats.RenderTimeouts)
	fmt.Printf("│ Cache Evictions:    %6d\n", stats.CacheEvictions)
	for kind, n := range stats.Failures {
		fmt.Printf("│ Failed (%s): %d\n", kind.String(), n)
	}
	fmt.Printf("│ Latency Mean:       %6.1f ms\n", stats.LatencyMeanMS)
	fmt.Printf("│ Latency P95:        %6.1f ms\n", stats.LatencyP95MS)
	fmt.Printf("│ Latency Max:        %6.1f ms\n", stats.LatencyMaxMS)
	fmt.Printf("│ Session:            %s\n", stats.State)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
}
