package trickplay

import "context"

// FrameExtractor defines the contract of the extraction engine
//
// Implementations must guarantee:
//   - Extract() calls are serialized and served in arrival order
//   - Extract() never retries a failed step
//   - Close() is idempotent and unblocks every pending Extract()
//   - Stats() is thread-safe (can be called from any goroutine)
type FrameExtractor interface {
	// Extract produces one still near req.Seconds.
	//
	// Blocks until the still is written, the context ends or the engine is
	// closed. Returns an *Error on failure.
	Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error)

	// Warmup loads descriptor so the first Extract() skips the load.
	Warmup(ctx context.Context, descriptor string) error

	// Stats returns current engine statistics.
	Stats() Stats

	// Close releases the decode session. Pending calls fail with KindCancelled.
	Close() error
}

var _ FrameExtractor = (*Extractor)(nil)
