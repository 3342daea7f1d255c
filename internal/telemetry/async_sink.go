package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/stwalsh4118/zoning-engine/internal/logger"
)

type envelope struct {
	metric *MetricEvent
	err    *ErrorEvent
}

// AsyncSink buffers events in a channel and writes them to the structured log
// from a single goroutine. When the buffer is full the event is dropped and
// counted rather than blocking the pipeline.
type AsyncSink struct {
	log     *logger.Logger
	events  chan envelope
	done    chan struct{}
	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncSink creates a sink with the given buffer size and starts its writer.
func NewAsyncSink(log *logger.Logger, bufferSize int) *AsyncSink {
	if bufferSize < 1 {
		bufferSize = 1
	}

	s := &AsyncSink{
		log:    log.With(map[string]interface{}{"component": "telemetry"}),
		events: make(chan envelope, bufferSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// EmitMetric enqueues a metric event.
func (s *AsyncSink) EmitMetric(event MetricEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.enqueue(envelope{metric: &event})
}

// EmitError enqueues an error event.
func (s *AsyncSink) EmitError(event ErrorEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.enqueue(envelope{err: &event})
}

// Dropped returns the number of events discarded because the buffer was full
// or the sink was closed.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be written.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	<-s.done
}

func (s *AsyncSink) enqueue(e envelope) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped.Add(1)
		return
	}

	// Non-blocking send so a slow log writer never stalls an analysis
	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)

	for e := range s.events {
		switch {
		case e.metric != nil:
			s.log.Info("metric", map[string]interface{}{
				"name":           e.metric.Name,
				"value":          e.metric.Value,
				"labels":         e.metric.Labels,
				"correlation_id": e.metric.CorrelationID,
				"event_time":     e.metric.Timestamp,
			})
		case e.err != nil:
			s.log.Warn("pipeline error", map[string]interface{}{
				"error_type":     e.err.ErrorType,
				"stage":          e.err.Stage,
				"context":        e.err.Context,
				"correlation_id": e.err.CorrelationID,
				"event_time":     e.err.Timestamp,
			})
		}
	}
}
