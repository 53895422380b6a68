// Package broadcaster defines the outbound notification surface
// spec.md §6 leaves unspecified beyond its shape: Broadcast(text,
// optional_keyboard, options). The concrete chat integration is a
// deployment detail; this package provides the interface plus a
// structured-logging implementation for local/dev use.
package broadcaster

import (
	"context"

	"github.com/rs/zerolog"
)

// Button is one inline keyboard button a broadcaster implementation may
// render alongside a message (spec.md §6's "optional_keyboard").
type Button struct {
	Label string
	Data  string
}

// Options carries delivery hints a concrete broadcaster may or may not
// honor (e.g. silent delivery, a reply-to message ID).
type Options struct {
	Silent    bool
	ReplyToID string
}

// Broadcaster is the interface the orchestrator, and anything else that
// needs to notify operators, depends on.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string, keyboard []Button, opts Options) error
}

// LogBroadcaster satisfies Broadcaster by emitting a structured log
// event instead of calling out to a chat provider.
type LogBroadcaster struct {
	log zerolog.Logger
}

// NewLogBroadcaster wraps a logger.
func NewLogBroadcaster(log zerolog.Logger) *LogBroadcaster {
	return &LogBroadcaster{log: log.With().Str("component", "broadcaster").Logger()}
}

func (b *LogBroadcaster) Broadcast(ctx context.Context, text string, keyboard []Button, opts Options) error {
	event := b.log.Info()
	if opts.Silent {
		event = b.log.Debug()
	}
	labels := make([]string, 0, len(keyboard))
	for _, k := range keyboard {
		labels = append(labels, k.Label)
	}
	event.Str("text", text).Strs("keyboard", labels).Str("reply_to", opts.ReplyToID).Msg("broadcast")
	return nil
}
