package telemetry

import "sync"

// MemorySink records events in memory. It is meant for tests and debugging.
type MemorySink struct {
	mu      sync.Mutex
	metrics []MetricEvent
	errors  []ErrorEvent
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) EmitMetric(event MetricEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, event)
}

func (s *MemorySink) EmitError(event ErrorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, event)
}

// Metrics returns a copy of the recorded metric events.
func (s *MemorySink) Metrics() []MetricEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MetricEvent(nil), s.metrics...)
}

// Errors returns a copy of the recorded error events.
func (s *MemorySink) Errors() []ErrorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ErrorEvent(nil), s.errors...)
}

// MetricsNamed returns recorded metrics with the given name.
func (s *MemorySink) MetricsNamed(name string) []MetricEvent {
	var out []MetricEvent
	for _, m := range s.Metrics() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// ErrorsAt returns recorded error events for the given stage.
func (s *MemorySink) ErrorsAt(stage string) []ErrorEvent {
	var out []ErrorEvent
	for _, e := range s.Errors() {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}
