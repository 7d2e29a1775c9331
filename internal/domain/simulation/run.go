package simulation

import (
	"fmt"
	"time"

	"github.com/trafficsim/backend/internal/domain/shared"
	"github.com/trafficsim/backend/internal/domain/traffic"
)

// RunStatus represents the lifecycle state of a simulation run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusFailed    RunStatus = "failed"
)

// IsValid checks if the RunStatus is a valid value
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusStopped, RunStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of RunStatus
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusStopped || s == RunStatusFailed
}

// Run is the aggregate root for one simulation execution. The config
// snapshot is immutable once the run is created; counters are written
// from orchestrator progress and at the terminal transition.
type Run struct {
	shared.BaseEntity
	Name   string
	Status RunStatus
	Config traffic.Config

	TotalSessions      int
	SuccessfulSessions int
	FailedSessions     int
	CompletedSessions  int

	StartedAt  *time.Time
	FinishedAt *time.Time
	LastError  string
}

// NewRun creates a pending run around a validated configuration
func NewRun(cfg *traffic.Config) (*Run, error) {
	if cfg == nil {
		return nil, shared.NewDomainError("INVALID_CONFIG", "Run configuration cannot be nil")
	}
	return &Run{
		BaseEntity: shared.NewBaseEntity(),
		Name:       fmt.Sprintf("sim_%d", time.Now().Unix()),
		Status:     RunStatusPending,
		Config:     *cfg,
	}, nil
}

// Start transitions the run to running
func (r *Run) Start() error {
	if r.Status != RunStatusPending {
		return shared.NewDomainError("INVALID_STATUS", "Only pending runs can be started")
	}
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
	r.Touch()
	return nil
}

// RecordProgress updates the session counters from a stats snapshot
func (r *Run) RecordProgress(stats traffic.StatsSnapshot) {
	r.TotalSessions = int(stats.Total)
	r.SuccessfulSessions = int(stats.Successful)
	r.FailedSessions = int(stats.Failed)
	r.CompletedSessions = int(stats.Completed)
	r.Touch()
}

// Complete transitions a running run to completed
func (r *Run) Complete(stats traffic.StatsSnapshot) error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATUS", "Only running runs can complete")
	}
	r.RecordProgress(stats)
	now := time.Now()
	r.Status = RunStatusCompleted
	r.FinishedAt = &now
	return nil
}

// Stop transitions a pending or running run to stopped
func (r *Run) Stop(stats traffic.StatsSnapshot) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATUS", "Run has already finished")
	}
	r.RecordProgress(stats)
	now := time.Now()
	r.Status = RunStatusStopped
	r.FinishedAt = &now
	return nil
}

// Fail transitions a pending or running run to failed with the causing error
func (r *Run) Fail(stats traffic.StatsSnapshot, cause error) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATUS", "Run has already finished")
	}
	r.RecordProgress(stats)
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	if cause != nil {
		r.LastError = cause.Error()
	}
	return nil
}

// Duration returns the wall-clock time between start and finish, falling
// back to time since start for runs still in flight.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(*r.StartedAt)
	}
	return time.Since(*r.StartedAt)
}
