package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	trickplay "github.com/e7canasta/orion-care-sensor/modules/trickplay"
)

var (
	extractURL    string
	extractAt     []float64
	extractWidth  int
	extractHeight int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract stills at one or more timestamps",
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractURL == "" {
			return fmt.Errorf("--url is required")
		}
		if len(extractAt) == 0 {
			extractAt = []float64{0}
		}

		extractURL = resolveDescriptor(extractURL)

		ctx := cmd.Context()
		ex, err := newExtractor(ctx)
		if err != nil {
			return err
		}
		defer ex.Close()

		failed := 0
		for _, seconds := range extractAt {
			res, err := ex.Extract(ctx, trickplay.ExtractionRequest{
				Descriptor: extractURL,
				Seconds:    seconds,
				Width:      optionalPixels(extractWidth),
				Height:     optionalPixels(extractHeight),
			})
			if err != nil {
				failed++
				slog.Error("Extraction failed",
					"seconds", seconds,
					"kind", trickplay.KindOf(err).String(),
					"error", err,
				)
				if ctx.Err() != nil {
					break
				}
				continue
			}
			fmt.Printf("✓ %7.2fs → %7.2fs  %4dx%-4d  %s\n",
				seconds, res.ActualSeconds, res.Width, res.Height, res.FileURI)
		}

		printStats(ex.Stats())

		if failed > 0 {
			return fmt.Errorf("%d of %d extractions failed", failed, len(extractAt))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "Media URL or absolute path (required)")
	extractCmd.Flags().Float64SliceVar(&extractAt, "at", nil, "Timestamp in seconds (repeatable)")
	extractCmd.Flags().IntVar(&extractWidth, "width", 0, "Output width (0 = derive)")
	extractCmd.Flags().IntVar(&extractHeight, "height", 0, "Output height (0 = derive)")
}
