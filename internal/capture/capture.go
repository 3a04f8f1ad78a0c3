// Package capture runs the read loop of a blocking audio input stream.
package capture

import (
	"context"
	"log/slog"
)

// Stream is a blocking audio input stream that fills a buffer on every Read.
type Stream interface {
	Read() error
}

// Run reads from s until stop is closed or ctx is done and calls onRead after every successful read.
// Errors matched by skip are logged and reading continues.
// Any other read error ends the loop and is returned.
func Run(ctx context.Context, s Stream, stop <-chan struct{}, skip func(error) bool, onRead func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		if err := s.Read(); err != nil {
			if skip != nil && skip(err) {
				slog.Warn("dropped audio input samples", "err", err)
				continue
			}

			return err
		}

		onRead()
	}
}
