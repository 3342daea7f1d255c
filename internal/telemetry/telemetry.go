// Package telemetry carries metric and error events emitted by every pipeline
// stage. Emission is fire-and-forget: sinks never block or fail the caller.
package telemetry

import (
	"context"
	"time"
)

// MetricEvent is a single measurement emitted by a pipeline stage.
type MetricEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	Labels        map[string]string `json:"labels,omitempty"`
	Name          string            `json:"name"`
	CorrelationID string            `json:"correlation_id"`
	Value         float64           `json:"value"`
}

// ErrorEvent is emitted whenever a request leaves the happy path.
type ErrorEvent struct {
	Timestamp     time.Time              `json:"timestamp"`
	Context       map[string]interface{} `json:"context,omitempty"`
	ErrorType     string                 `json:"error_type"`
	Stage         string                 `json:"stage"`
	CorrelationID string                 `json:"correlation_id"`
}

// Sink receives telemetry events. Implementations must return promptly.
type Sink interface {
	EmitMetric(event MetricEvent)
	EmitError(event ErrorEvent)
}

// Pipeline stage names used in events.
const (
	StageRegistry = "registry"
	StageCache    = "cache"
	StageFetch    = "fetch"
	StageParse    = "parse"
	StageEvaluate = "evaluate"
	StagePersist  = "persist"
)

type correlationKey struct{}

// WithCorrelationID returns a context carrying the correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) EmitMetric(MetricEvent) {}
func (NopSink) EmitError(ErrorEvent)   {}
