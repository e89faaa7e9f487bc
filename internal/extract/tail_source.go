// internal/extract/tail_source.go
package extract

import (
	"context"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// TailEventSource follows a JSON-lines event log written by a test-runner
// hook and feeds decoded events onto a channel suitable for the
// EventStreamExtractor. It exists for runners that can only append to a file.
type TailEventSource struct {
	path   string
	logger *zap.Logger
}

// NewTailEventSource builds a source over an event log path.
func NewTailEventSource(path string, logger *zap.Logger) *TailEventSource {
	return &TailEventSource{path: path, logger: logger.Named("tail-events")}
}

// Follow tails the log until ctx is cancelled or EOF is reached on a
// completed file, decoding one TestEvent per line. Undecodable lines are
// skipped and logged. The returned channel is closed when the source stops.
func (s *TailEventSource) Follow(ctx context.Context) (<-chan schemas.TestEvent, error) {
	t, err := tail.TailFile(s.path, tail.Config{
		Follow:    false,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, &schemas.ExtractionError{Source: s.path, Err: err}
	}

	out := make(chan schemas.TestEvent)
	go func() {
		defer close(out)
		defer func() { _ = t.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					s.logger.Warn("Tail error on event log", zap.Error(line.Err))
					continue
				}
				var ev schemas.TestEvent
				if err := json.UnmarshalFromString(line.Text, &ev); err != nil {
					s.logger.Warn("Skipping undecodable event line", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
