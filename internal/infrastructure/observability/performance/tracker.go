// Package performance provides lightweight operation timing for the
// session-sync workflows. Services start a marker when an operation begins
// and complete it when done; the tracker keeps a bounded window of recent
// markers for the status endpoint.
package performance

import (
	"sync"
	"time"
)

// Marker represents a single performance measurement for an operation.
type Marker struct {
	Operation string         `json:"operation"` // e.g., "session:promote", "observer:redirect"
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Completed bool           `json:"completed"`
}

// Complete marks the operation as finished.
func (m *Marker) Complete() {
	if m.Completed {
		return
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
}

// SetSuccess marks the operation as successful or failed.
func (m *Marker) SetSuccess(success bool) {
	m.Success = success
}

// SetError sets an error message and marks the operation as failed.
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}

// AddMetadata adds key-value metadata to the marker.
func (m *Marker) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Tracker collects markers across operations.
type Tracker struct {
	markers    []Marker
	maxMarkers int
	mu         sync.RWMutex
}

// NewTracker creates a tracker keeping at most maxMarkers recent markers.
func NewTracker(maxMarkers int) *Tracker {
	if maxMarkers <= 0 {
		maxMarkers = 1000
	}
	return &Tracker{maxMarkers: maxMarkers}
}

// StartOperation begins tracking an operation.
func (t *Tracker) StartOperation(operation string) *Marker {
	return &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Success:   true,
	}
}

// CompleteOperation finalizes a marker and records it.
func (t *Tracker) CompleteOperation(marker *Marker) {
	marker.Complete()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.markers = append(t.markers, *marker)
	if len(t.markers) > t.maxMarkers {
		t.markers = t.markers[len(t.markers)-t.maxMarkers:]
	}
}

// RecentMetrics returns markers recorded within the window.
func (t *Tracker) RecentMetrics(within time.Duration) []Marker {
	cutoff := time.Now().Add(-within)

	t.mu.RLock()
	defer t.mu.RUnlock()
	var recent []Marker
	for _, m := range t.markers {
		if m.EndTime.After(cutoff) {
			recent = append(recent, m)
		}
	}
	return recent
}

// OverallStats summarizes the tracked window per operation.
func (t *Tracker) OverallStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	type agg struct {
		count    int
		failures int
		total    time.Duration
	}
	byOp := make(map[string]*agg)
	for _, m := range t.markers {
		a := byOp[m.Operation]
		if a == nil {
			a = &agg{}
			byOp[m.Operation] = a
		}
		a.count++
		a.total += m.Duration
		if !m.Success {
			a.failures++
		}
	}

	stats := make(map[string]any, len(byOp))
	for op, a := range byOp {
		stats[op] = map[string]any{
			"count":       a.count,
			"failures":    a.failures,
			"avgDuration": (a.total / time.Duration(a.count)).String(),
		}
	}
	return stats
}
