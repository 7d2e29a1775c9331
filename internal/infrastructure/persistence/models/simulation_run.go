package models

import (
	"encoding/json"
	"time"

	"github.com/trafficsim/backend/internal/domain/simulation"
	"github.com/trafficsim/backend/internal/domain/traffic"
)

// SimulationRunModel is the GORM model for the simulation_runs table.
// The full run configuration is stored as a JSON document; the columns
// that listings and status queries need are kept relational.
type SimulationRunModel struct {
	BaseModel
	Name               string     `gorm:"type:varchar(100);not null;index"`
	Status             string     `gorm:"type:varchar(20);not null;index"`
	TargetURL          string     `gorm:"column:target_url;type:text;not null"`
	ConfigJSON         string     `gorm:"column:config;type:jsonb;not null"`
	TotalSessions      int        `gorm:"column:total_sessions;not null;default:0"`
	SuccessfulSessions int        `gorm:"column:successful_sessions;not null;default:0"`
	FailedSessions     int        `gorm:"column:failed_sessions;not null;default:0"`
	CompletedSessions  int        `gorm:"column:completed_sessions;not null;default:0"`
	StartedAt          *time.Time `gorm:"column:started_at"`
	FinishedAt         *time.Time `gorm:"column:finished_at"`
	LastError          string     `gorm:"column:last_error;type:text"`
}

// TableName returns the table name for SimulationRunModel
func (SimulationRunModel) TableName() string {
	return "simulation_runs"
}

// ToDomain converts SimulationRunModel to a domain Run.
// A malformed config document yields a zero config rather than an error
// so that historical runs remain listable.
func (m *SimulationRunModel) ToDomain() *simulation.Run {
	var cfg traffic.Config
	if m.ConfigJSON != "" {
		_ = json.Unmarshal([]byte(m.ConfigJSON), &cfg)
	}
	return &simulation.Run{
		BaseEntity:         m.BaseModel.ToDomain(),
		Name:               m.Name,
		Status:             simulation.RunStatus(m.Status),
		Config:             cfg,
		TotalSessions:      m.TotalSessions,
		SuccessfulSessions: m.SuccessfulSessions,
		FailedSessions:     m.FailedSessions,
		CompletedSessions:  m.CompletedSessions,
		StartedAt:          m.StartedAt,
		FinishedAt:         m.FinishedAt,
		LastError:          m.LastError,
	}
}

// SimulationRunModelFromDomain creates a SimulationRunModel from a domain Run
func SimulationRunModelFromDomain(run *simulation.Run) *SimulationRunModel {
	configJSON := "{}"
	if data, err := json.Marshal(run.Config); err == nil {
		configJSON = string(data)
	}
	m := &SimulationRunModel{
		Name:               run.Name,
		Status:             string(run.Status),
		TargetURL:          run.Config.TargetURL,
		ConfigJSON:         configJSON,
		TotalSessions:      run.TotalSessions,
		SuccessfulSessions: run.SuccessfulSessions,
		FailedSessions:     run.FailedSessions,
		CompletedSessions:  run.CompletedSessions,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
		LastError:          run.LastError,
	}
	m.FromDomainBaseEntity(run.BaseEntity)
	return m
}
