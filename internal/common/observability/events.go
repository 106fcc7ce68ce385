package observability

import (
	"context"

	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
)

// Tracker records named conversation events to the log and both metric pipelines.
type Tracker struct {
	log  logger.Logger
	otel *Observability
}

func NewTracker(log logger.Logger, o *Observability) *Tracker {
	return &Tracker{log: log, otel: o}
}

// Track logs the event with props and increments its counters. A nil Tracker is a no-op.
func (t *Tracker) Track(ctx context.Context, name string, props map[string]interface{}) {
	if t == nil {
		return
	}
	fields := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		fields[k] = v
	}
	fields["event"] = name

	logger.FromContext(ctx, t.log).Info("event", fields)
	metrics.ConversationEvents.WithLabelValues(name).Inc()
	t.otel.RecordEvent(ctx, name)
}
