package simulation

import (
	"github.com/google/uuid"

	"github.com/trafficsim/backend/internal/domain/shared"
	"github.com/trafficsim/backend/internal/domain/traffic"
)

// Aggregate type constant
const AggregateTypeRun = "SimulationRun"

// Event type constants
const (
	EventTypeRunStarted       = "RunStarted"
	EventTypeRunCompleted     = "RunCompleted"
	EventTypeRunStopped       = "RunStopped"
	EventTypeRunFailed        = "RunFailed"
	EventTypeSessionStarted   = "SessionStarted"
	EventTypeSessionCompleted = "SessionCompleted"
	EventTypeSessionFailed    = "SessionFailed"
)

// RunStartedEvent is raised when a run transitions to running
type RunStartedEvent struct {
	shared.BaseDomainEvent
	RunID         uuid.UUID `json:"run_id"`
	Name          string    `json:"name"`
	TargetURL     string    `json:"target_url"`
	TotalSessions int       `json:"total_sessions"`
	MaxConcurrent int       `json:"max_concurrent"`
}

// NewRunStartedEvent creates a new RunStartedEvent
func NewRunStartedEvent(run *Run) *RunStartedEvent {
	return &RunStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRunStarted, AggregateTypeRun, run.ID),
		RunID:           run.ID,
		Name:            run.Name,
		TargetURL:       run.Config.TargetURL,
		TotalSessions:   run.Config.TotalSessions,
		MaxConcurrent:   run.Config.MaxConcurrent,
	}
}

// EventType returns the event type name
func (e *RunStartedEvent) EventType() string {
	return EventTypeRunStarted
}

// RunCompletedEvent is raised when every admitted session has finished
type RunCompletedEvent struct {
	shared.BaseDomainEvent
	RunID uuid.UUID             `json:"run_id"`
	Stats traffic.StatsSnapshot `json:"stats"`
}

// NewRunCompletedEvent creates a new RunCompletedEvent
func NewRunCompletedEvent(run *Run, stats traffic.StatsSnapshot) *RunCompletedEvent {
	return &RunCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRunCompleted, AggregateTypeRun, run.ID),
		RunID:           run.ID,
		Stats:           stats,
	}
}

// EventType returns the event type name
func (e *RunCompletedEvent) EventType() string {
	return EventTypeRunCompleted
}

// RunStoppedEvent is raised when a stop request ends a run early
type RunStoppedEvent struct {
	shared.BaseDomainEvent
	RunID uuid.UUID             `json:"run_id"`
	Stats traffic.StatsSnapshot `json:"stats"`
}

// NewRunStoppedEvent creates a new RunStoppedEvent
func NewRunStoppedEvent(run *Run, stats traffic.StatsSnapshot) *RunStoppedEvent {
	return &RunStoppedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRunStopped, AggregateTypeRun, run.ID),
		RunID:           run.ID,
		Stats:           stats,
	}
}

// EventType returns the event type name
func (e *RunStoppedEvent) EventType() string {
	return EventTypeRunStopped
}

// RunFailedEvent is raised when a run aborts before finishing its sessions
type RunFailedEvent struct {
	shared.BaseDomainEvent
	RunID uuid.UUID             `json:"run_id"`
	Error string                `json:"error"`
	Stats traffic.StatsSnapshot `json:"stats"`
}

// NewRunFailedEvent creates a new RunFailedEvent
func NewRunFailedEvent(run *Run, stats traffic.StatsSnapshot, cause error) *RunFailedEvent {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &RunFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRunFailed, AggregateTypeRun, run.ID),
		RunID:           run.ID,
		Error:           msg,
		Stats:           stats,
	}
}

// EventType returns the event type name
func (e *RunFailedEvent) EventType() string {
	return EventTypeRunFailed
}

// SessionStartedEvent is raised when a session slot is admitted
type SessionStartedEvent struct {
	shared.BaseDomainEvent
	RunID     uuid.UUID `json:"run_id"`
	SessionNo int       `json:"session_no"`
	Persona   string    `json:"persona"`
	Device    string    `json:"device"`
	Country   string    `json:"country"`
	ProfileID string    `json:"profile_id"`
	Returning bool      `json:"returning"`
}

// NewSessionStartedEvent creates a new SessionStartedEvent
func NewSessionStartedEvent(runID uuid.UUID, sessionNo int, persona, device, country, profileID string, returning bool) *SessionStartedEvent {
	return &SessionStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionStarted, AggregateTypeRun, runID),
		RunID:           runID,
		SessionNo:       sessionNo,
		Persona:         persona,
		Device:          device,
		Country:         country,
		ProfileID:       profileID,
		Returning:       returning,
	}
}

// EventType returns the event type name
func (e *SessionStartedEvent) EventType() string {
	return EventTypeSessionStarted
}

// SessionCompletedEvent is raised when a session finishes successfully
type SessionCompletedEvent struct {
	shared.BaseDomainEvent
	RunID          uuid.UUID `json:"run_id"`
	SessionNo      int       `json:"session_no"`
	Persona        string    `json:"persona"`
	DurationMs     int64     `json:"duration_ms"`
	PagesVisited   int       `json:"pages_visited"`
	MissionType    string    `json:"mission_type,omitempty"`
	MissionOutcome string    `json:"mission_outcome,omitempty"`
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent
func NewSessionCompletedEvent(runID uuid.UUID, sessionNo int, persona string, durationMs int64, pagesVisited int, missionType, missionOutcome string) *SessionCompletedEvent {
	return &SessionCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionCompleted, AggregateTypeRun, runID),
		RunID:           runID,
		SessionNo:       sessionNo,
		Persona:         persona,
		DurationMs:      durationMs,
		PagesVisited:    pagesVisited,
		MissionType:     missionType,
		MissionOutcome:  missionOutcome,
	}
}

// EventType returns the event type name
func (e *SessionCompletedEvent) EventType() string {
	return EventTypeSessionCompleted
}

// SessionFailedEvent is raised when a session exhausts its retry budget
// or hits a fatal error.
type SessionFailedEvent struct {
	shared.BaseDomainEvent
	RunID     uuid.UUID `json:"run_id"`
	SessionNo int       `json:"session_no"`
	Persona   string    `json:"persona"`
	Attempts  int       `json:"attempts"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
}

// NewSessionFailedEvent creates a new SessionFailedEvent
func NewSessionFailedEvent(runID uuid.UUID, sessionNo int, persona string, attempts int, kind string, cause error) *SessionFailedEvent {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &SessionFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionFailed, AggregateTypeRun, runID),
		RunID:           runID,
		SessionNo:       sessionNo,
		Persona:         persona,
		Attempts:        attempts,
		Kind:            kind,
		Error:           msg,
	}
}

// EventType returns the event type name
func (e *SessionFailedEvent) EventType() string {
	return EventTypeSessionFailed
}
