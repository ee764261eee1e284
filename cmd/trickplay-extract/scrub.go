package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	trickplay "github.com/e7canasta/orion-care-sensor/modules/trickplay"
)

var (
	scrubURL      string
	scrubFrom     float64
	scrubTo       float64
	scrubStep     float64
	scrubInterval time.Duration
	scrubWidth    int
)

// scrubCmd simulates a user dragging a scrub bar: positions arrive faster
// than stills can be produced, and only the newest one is extracted.
var scrubCmd = &cobra.Command{
	Use:   "scrub",
	Short: "Simulate drag-to-scrub over a time range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scrubURL == "" {
			return fmt.Errorf("--url is required")
		}
		if scrubStep <= 0 || scrubTo < scrubFrom {
			return fmt.Errorf("invalid range %.2f..%.2f step %.2f", scrubFrom, scrubTo, scrubStep)
		}

		scrubURL = resolveDescriptor(scrubURL)

		ctx := cmd.Context()
		ex, err := newExtractor(ctx)
		if err != nil {
			return err
		}
		defer ex.Close()

		scrubber, err := trickplay.NewScrubber(ex, scrubURL, optionalPixels(scrubWidth), nil, func(r trickplay.ScrubResult) {
			if r.Err != nil {
				slog.Warn("Scrub extraction failed", "seconds", r.Seconds, "error", r.Err)
			} else {
				fmt.Printf("✓ %7.2fs → %7.2fs  %s\n", r.Seconds, r.Result.ActualSeconds, r.Result.FileURI)
			}
		})
		if err != nil {
			return err
		}

		fmt.Printf("Scrubbing %.2fs → %.2fs (step %.2fs every %v)\n", scrubFrom, scrubTo, scrubStep, scrubInterval)
		fmt.Printf("Press Ctrl+C to stop\n\n")

		ticker := time.NewTicker(scrubInterval)
		defer ticker.Stop()

	drag:
		for pos := scrubFrom; pos <= scrubTo; pos += scrubStep {
			if err := scrubber.Seek(pos); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				break drag
			case <-ticker.C:
			}
		}

		// Let the last position finish
		deadline := time.Now().Add(10 * time.Second)
		for ctx.Err() == nil && !settled(scrubber.Stats()) {
			if time.Now().After(deadline) {
				slog.Warn("Timed out waiting for the final still")
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		scrubber.Stop()

		stats := scrubber.Stats()
		fmt.Printf("\n")
		fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
		fmt.Printf("│ Scrub Summary\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Positions Submitted: %6d\n", stats.Submitted)
		fmt.Printf("│ Superseded:          %6d\n", stats.Superseded)
		fmt.Printf("│ Completed:           %6d\n", stats.Completed)
		fmt.Printf("│ Failed:              %6d\n", stats.Failed)
		fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")

		printStats(ex.Stats())
		return nil
	},
}

func init() {
	scrubCmd.Flags().StringVar(&scrubURL, "url", "", "Media URL or absolute path (required)")
	scrubCmd.Flags().Float64Var(&scrubFrom, "from", 0, "Start position in seconds")
	scrubCmd.Flags().Float64Var(&scrubTo, "to", 30, "End position in seconds")
	scrubCmd.Flags().Float64Var(&scrubStep, "step", 0.5, "Position increment in seconds")
	scrubCmd.Flags().DurationVar(&scrubInterval, "interval", 16*time.Millisecond, "Delay between positions (drag speed)")
	scrubCmd.Flags().IntVar(&scrubWidth, "width", 160, "Output width (0 = source)")
}

// settled reports whether every position not superseded has been extracted.
func settled(s trickplay.ScrubberStats) bool {
	return s.Completed+s.Failed+s.Superseded >= s.Submitted
}
