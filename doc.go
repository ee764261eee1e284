// Package trickplay extracts still images from streamed video at arbitrary
// timestamps using keyframe-only seeking.
//
// It is built for scrubbing: a UI asks for many stills of the same stream
// in quick succession, and each answer should arrive in tens of
// milliseconds. The engine keeps one decode session alive between calls,
// seeks to the keyframe nearest the requested time (never decoding
// predicted frames), and writes the still as a JPEG into a small,
// self-evicting cache directory.
//
// # Quick Start
//
//	cfg, err := trickplay.ConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ex, err := trickplay.NewExtractor(cfg, trickplay.NewGStreamerBackend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ex.Close()
//
//	res, err := ex.Extract(ctx, trickplay.ExtractionRequest{
//	    Descriptor: "https://cdn.example.com/iframes.m3u8",
//	    Seconds:    12.5,
//	    Width:      trickplay.Pixels(160),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("%s (%dx%d) at %.2fs", res.FileURI, res.Width, res.Height, res.ActualSeconds)
//
// # Extraction Protocol
//
// Every Extract call runs these steps while holding the engine's single
// gate. Concurrent calls wait their turn in arrival order:
//
//  1. Load the descriptor if it differs from the loaded one (bounded by
//     Config.LoadTimeout, failure is KindLoadFailed)
//  2. Seek to the nearest keyframe
//  3. Wait for the render notification (bounded by Config.RenderTimeout).
//     A timeout is NOT an error: backends suppress the notification at end
//     of stream, and the current frame is captured anyway
//  4. Capture the RGBA frame
//  5. Resolve the output size, resize (Lanczos), encode JPEG at quality 80
//  6. Write the file to the cache and evict all but the newest N stills
//
// Failures in steps 1-5 before encoding tear the decode session down, so
// the next call reloads even for the same descriptor. Encode or write
// failures (KindOutputFailed) leave the session alive. Nothing is retried.
//
// # Output Size
//
//   - Width and Height given: used verbatim (aspect ratio may distort)
//   - Only Width: Height = trunc(Width * srcH / srcW)
//   - Only Height: Width = trunc(Height * srcW / srcH)
//   - Neither: the captured frame size
//
// Example (640x360 source, Width=90): 90x50.
//
// # Track Selection
//
// Multi-variant streams are opened with ThumbnailPolicy: a 640x640
// resolution ceiling and the lowest bitrate. The policy is fixed.
//
// # Backends
//
// The engine talks to a Decode Backend through the Backend interface.
// Two are built in:
//
//   - NewGStreamerBackend: real media over GStreamer (http(s), HLS, file)
//   - NewSyntheticBackend: a test pattern for synthetic:// descriptors,
//     with injectable latency and failures
//
// # Scrubbing
//
// Extractor never drops queued work. For drag-to-scrub UIs wrap it in a
// Scrubber, which keeps only the latest requested position.
//
// # Errors
//
// Every error is an *Error carrying an ErrorKind:
//
//	if errors.Is(err, trickplay.KindLoadFailed) {
//	    // the media could not be opened in time
//	}
//
// # Cache
//
// Stills are named trickplay_frame_<seq>_<ms>_<id>.jpg. Eviction only
// touches files following that convention and is best effort: several
// engines (or processes) may share one directory.
package trickplay
