package scanning

import "time"

// TimeProvider is an interface that provides a Now method to get the current time.
type TimeProvider interface {
	Now() time.Time
}

// Real implementation for production.
type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

// SystemClock returns a TimeProvider backed by time.Now.
func SystemClock() TimeProvider { return realTimeProvider{} }

// ScanTimeline tracks when a scan was first observed, last polled and found
// terminal.
type ScanTimeline struct {
	startedAt    time.Time
	lastObserved time.Time
	completedAt  time.Time
	timeProvider TimeProvider
}

// NewScanTimeline creates a ScanTimeline starting now.
func NewScanTimeline(timeProvider TimeProvider) *ScanTimeline {
	now := timeProvider.Now()
	return &ScanTimeline{
		startedAt:    now,
		lastObserved: now,
		timeProvider: timeProvider,
	}
}

// StartedAt returns the time tracking began.
func (t *ScanTimeline) StartedAt() time.Time { return t.startedAt }

// LastObserved returns the time of the latest status observation.
func (t *ScanTimeline) LastObserved() time.Time { return t.lastObserved }

// CompletedAt returns the time a terminal status was observed.
func (t *ScanTimeline) CompletedAt() time.Time { return t.completedAt }

// Observe records a status observation and returns its timestamp.
func (t *ScanTimeline) Observe() time.Time {
	t.lastObserved = t.timeProvider.Now()
	return t.lastObserved
}

// MarkCompleted records the terminal observation.
func (t *ScanTimeline) MarkCompleted() {
	t.completedAt = t.Observe()
}

// IsCompleted checks if the timeline has been marked as completed.
func (t *ScanTimeline) IsCompleted() bool { return !t.completedAt.IsZero() }

// Elapsed is the time between the start and the completion, or the last
// observation while the scan is still running.
func (t *ScanTimeline) Elapsed() time.Duration {
	if t.IsCompleted() {
		return t.completedAt.Sub(t.startedAt)
	}
	return t.lastObserved.Sub(t.startedAt)
}
