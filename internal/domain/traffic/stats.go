package traffic

import (
	"sync/atomic"
	"time"
)

// Stats aggregates session outcomes across one run. Counters are updated
// atomically by concurrent session tasks and read via Snapshot. At
// quiescence completed == successful + failed, and total only increases.
type Stats struct {
	total      atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64
	completed  atomic.Int64
	duration   atomic.Int64 // cumulative nanoseconds across successful sessions
}

// RecordAttempt counts a session admitted past the concurrency gate
func (s *Stats) RecordAttempt() {
	s.total.Add(1)
}

// RecordSuccess counts a successful session and its duration
func (s *Stats) RecordSuccess(d time.Duration) {
	s.successful.Add(1)
	s.duration.Add(int64(d))
}

// RecordFailure counts a failed session
func (s *Stats) RecordFailure() {
	s.failed.Add(1)
}

// RecordCompleted counts a session reaching a terminal state regardless of
// outcome
func (s *Stats) RecordCompleted() {
	s.completed.Add(1)
}

// Snapshot returns a consistent-enough point-in-time copy of the counters
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Total:         s.total.Load(),
		Successful:    s.successful.Load(),
		Failed:        s.failed.Load(),
		Completed:     s.completed.Load(),
		TotalDuration: time.Duration(s.duration.Load()),
	}
}

// StatsSnapshot is an immutable view of run statistics
type StatsSnapshot struct {
	Total         int64         `json:"total"`
	Successful    int64         `json:"successful"`
	Failed        int64         `json:"failed"`
	Completed     int64         `json:"completed"`
	TotalDuration time.Duration `json:"total_duration"`
}

// AvgSuccessDuration returns the mean duration of successful sessions
func (s StatsSnapshot) AvgSuccessDuration() time.Duration {
	if s.Successful == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Successful)
}
