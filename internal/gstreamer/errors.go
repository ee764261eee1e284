package gstreamer

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies pipeline errors for logging
type ErrorCategory int

const (
	// ErrCategoryNetwork covers HTTP/transport failures (DNS, refused, timeouts)
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryNotFound covers missing resources (404, missing file)
	ErrCategoryNotFound
	// ErrCategoryCodec covers demux/decode failures and missing plugins
	ErrCategoryCodec
	// ErrCategoryAuth covers 401/403 responses
	ErrCategoryAuth
	// ErrCategoryUnknown is everything else
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryNotFound:
		return "not-found"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Keyword tables, checked in order. Auth and not-found are more specific
// than the generic network words ("http", "connection") and go first.
var categoryKeywords = []struct {
	category ErrorCategory
	keywords []string
}{
	{ErrCategoryAuth, []string{"unauthorized", "401", "403", "forbidden", "authentication"}},
	{ErrCategoryNotFound, []string{"404", "not found", "no such file", "does not exist"}},
	{ErrCategoryCodec, []string{
		"decode", "decoder", "codec", "demux", "format", "caps", "negotiat",
		"missing plugin", "no suitable plugins", "could not determine type", "stream type",
	}},
	{ErrCategoryNetwork, []string{
		"connection", "timeout", "timed out", "unreachable", "network", "dns",
		"resolve", "socket", "http", "could not connect", "failed to connect",
	}},
}

// ClassifyMessage categorizes an error from its message and debug string.
func ClassifyMessage(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(combined, kw) {
				return c.category
			}
		}
	}
	return ErrCategoryUnknown
}

// ClassifyGStreamerError categorizes a bus error.
//
// go-gst's GError does not expose the error domain, so classification
// relies on the message text.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyMessage(gerr.Error(), gerr.DebugString())
}
