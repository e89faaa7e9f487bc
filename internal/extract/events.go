// internal/extract/events.go
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// EventStreamExtractor consumes live per-test outcome events from an embedded
// test-runner hook. It is the fallback artifact source for runs where no
// report file is ever produced, e.g. collection or syntax errors.
type EventStreamExtractor struct {
	events   <-chan schemas.TestEvent
	resolver schemas.PathResolver
	logger   *zap.Logger
}

// NewEventStreamExtractor builds an extractor over an event channel. The
// channel must be closed by the producer when the run ends.
func NewEventStreamExtractor(events <-chan schemas.TestEvent, resolver schemas.PathResolver, logger *zap.Logger) *EventStreamExtractor {
	return &EventStreamExtractor{
		events:   events,
		resolver: resolver,
		logger:   logger.Named("extract-events"),
	}
}

// Name implements schemas.Extractor.
func (e *EventStreamExtractor) Name() string { return "event-stream" }

// Extract drains the event channel until it closes or the context is
// cancelled, emitting one record per event in arrival order.
func (e *EventStreamExtractor) Extract(ctx context.Context) ([]schemas.Failure, error) {
	var failures []schemas.Failure
	for {
		select {
		case <-ctx.Done():
			// Partial results are still deduplicated like a completed drain.
			return dedupe(failures, e.logger), ctx.Err()
		case ev, ok := <-e.events:
			if !ok {
				return dedupe(failures, e.logger), nil
			}
			if ev.TestID == "" {
				e.logger.Warn("Skipping malformed test event (empty test id)")
				continue
			}
			if _, valid := parseOutcome(string(ev.Outcome)); !valid {
				e.logger.Warn("Skipping test event with unknown outcome",
					zap.String("test_id", ev.TestID),
					zap.String("outcome", string(ev.Outcome)))
				continue
			}

			kind := ev.ErrorKind
			msg := ev.Message
			if kind == "" && msg != "" {
				kind, msg = classifyMessage(msg)
			}

			failures = append(failures, schemas.Failure{
				TestID:    ev.TestID,
				File:      resolvePath(e.resolver, ev.File, e.logger),
				Line:      ev.Line,
				ErrorKind: kind,
				Message:   msg,
				Traceback: ev.Traceback,
				Outcome:   ev.Outcome,
			})
		}
	}
}
