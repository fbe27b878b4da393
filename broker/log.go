package broker

import (
	"context"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// LogBroker publishes events as structured log lines.
type LogBroker struct {
	logger logging.Logger
}

var _ core.EventBroker = (*LogBroker)(nil)

// NewLogBroker creates a broker writing to logger.
func NewLogBroker(logger logging.Logger) *LogBroker {
	return &LogBroker{logger: logging.OrNoOp(logger)}
}

// Publish implements core.EventBroker.
func (b *LogBroker) Publish(_ context.Context, conversationID string, events []core.Event) error {
	for _, ev := range events {
		b.logger.Info("event",
			"sender_id", conversationID,
			"event_id", ev.ID,
			"event", string(ev.Type),
			"name", ev.Name,
			"timestamp", ev.UnixSeconds(),
		)
	}
	return nil
}
