package simulation

import (
	"time"

	"github.com/trafficsim/backend/internal/domain/simulation"
	"github.com/trafficsim/backend/internal/domain/traffic"
)

// =============================================================================
// Run Config DTOs
// =============================================================================

// RunConfigRequest carries a run configuration. Unset optional fields fall
// back to the construction defaults.
type RunConfigRequest struct {
	TargetURL            string         `json:"target_url" binding:"required,url"`
	TotalSessions        int            `json:"total_sessions" binding:"required,min=1,max=10000"`
	MaxConcurrent        int            `json:"max_concurrent" binding:"required,min=1,max=100"`
	Headless             *bool          `json:"headless"`
	Proxies              []string       `json:"proxies"`
	ProxyFile            string         `json:"proxy_file"`
	ReturningVisitorRate *float64       `json:"returning_visitor_rate" binding:"omitempty,min=0,max=100"`
	NavigationTimeoutSec *int           `json:"navigation_timeout_seconds" binding:"omitempty,min=1"`
	MaxRetriesPerSession *int           `json:"max_retries_per_session" binding:"omitempty,min=0"`
	Personas             []PersonaDTO   `json:"personas"`
	PersonasFile         string         `json:"personas_file"`
	GenderDistribution   map[string]int `json:"gender_distribution"`
	DeviceDistribution   map[string]int `json:"device_distribution"`
	AgeDistribution      map[string]int `json:"age_distribution"`
	CountryDistribution  map[string]int `json:"country_distribution"`
	ReferrerSources      []string       `json:"referrer_sources"`
	ModeType             string         `json:"mode_type" binding:"omitempty,oneof=Human Bot"`
	NetworkType          string         `json:"network_type" binding:"omitempty,oneof=Online Offline"`
	RampUpRate           float64        `json:"ramp_up_rate" binding:"omitempty,min=0"`
}

// RangeDTO is an inclusive integer interval
type RangeDTO struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// GoalDTO is a mission tag with free-form parameters
type GoalDTO struct {
	Type   string         `json:"type" yaml:"type" binding:"required"`
	Params map[string]any `json:"params" yaml:"params"`
}

// PersonaDTO mirrors a behavior persona on the wire and in persona files
type PersonaDTO struct {
	Name                       string         `json:"name" yaml:"name" binding:"required"`
	GoalKeywords               map[string]int `json:"goal_keywords" yaml:"goal_keywords"`
	GenericKeywords            map[string]int `json:"generic_keywords" yaml:"generic_keywords"`
	NavigationDepth            *RangeDTO      `json:"navigation_depth" yaml:"navigation_depth"`
	DwellTimeSeconds           *RangeDTO      `json:"dwell_time_seconds" yaml:"dwell_time_seconds"`
	CanFillForms               bool           `json:"can_fill_forms" yaml:"can_fill_forms"`
	ScrollProbability          *float64       `json:"scroll_probability" yaml:"scroll_probability"`
	FormInteractionProbability *float64       `json:"form_interaction_probability" yaml:"form_interaction_probability"`
	Goal                       *GoalDTO       `json:"goal,omitempty" yaml:"goal,omitempty"`
}

// ConfigResponse is the response view of a run configuration
type ConfigResponse struct {
	TargetURL            string         `json:"target_url"`
	TotalSessions        int            `json:"total_sessions"`
	MaxConcurrent        int            `json:"max_concurrent"`
	Headless             bool           `json:"headless"`
	Proxies              []string       `json:"proxies,omitempty"`
	ReturningVisitorRate float64        `json:"returning_visitor_rate"`
	NavigationTimeoutSec int            `json:"navigation_timeout_seconds"`
	MaxRetriesPerSession int            `json:"max_retries_per_session"`
	Personas             []PersonaDTO   `json:"personas"`
	GenderDistribution   map[string]int `json:"gender_distribution"`
	DeviceDistribution   map[string]int `json:"device_distribution"`
	AgeDistribution      map[string]int `json:"age_distribution"`
	CountryDistribution  map[string]int `json:"country_distribution"`
	ReferrerSources      []string       `json:"referrer_sources"`
	ModeType             string         `json:"mode_type"`
	NetworkType          string         `json:"network_type"`
	RampUpRate           float64        `json:"ramp_up_rate"`
}

// ValidateConfigResponse reports the outcome of config validation
type ValidateConfigResponse struct {
	Valid bool   `json:"valid"`
	Field string `json:"field,omitempty"`
	Error string `json:"error,omitempty"`
}

// =============================================================================
// Run DTOs
// =============================================================================

// StatsDTO is a point-in-time view of run statistics
type StatsDTO struct {
	Total                int64 `json:"total"`
	Successful           int64 `json:"successful"`
	Failed               int64 `json:"failed"`
	Completed            int64 `json:"completed"`
	AvgSuccessDurationMs int64 `json:"avg_success_duration_ms"`
}

// StartRunResponse acknowledges an accepted run
type StartRunResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// RunStatusResponse is the live state of one run
type RunStatusResponse struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Stats  StatsDTO `json:"stats"`
}

// RunResponse represents a run record
type RunResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	TargetURL     string     `json:"target_url"`
	TotalSessions int        `json:"total_sessions"`
	MaxConcurrent int        `json:"max_concurrent"`
	Stats         StatsDTO   `json:"stats"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListRunsResponse is a list of run records
type ListRunsResponse struct {
	Items []RunResponse `json:"items"`
	Total int           `json:"total"`
}

// =============================================================================
// Mapping helpers
// =============================================================================

func toDomainPersona(dto PersonaDTO) traffic.Persona {
	p := traffic.NewPersona(dto.Name)
	p.GoalKeywords = dto.GoalKeywords
	p.GenericKeywords = dto.GenericKeywords
	p.CanFillForms = dto.CanFillForms
	if dto.NavigationDepth != nil {
		p.NavigationDepth = traffic.IntRange{Min: dto.NavigationDepth.Min, Max: dto.NavigationDepth.Max}
	}
	if dto.DwellTimeSeconds != nil {
		p.DwellTime = traffic.DurationRange{
			Min: time.Duration(dto.DwellTimeSeconds.Min) * time.Second,
			Max: time.Duration(dto.DwellTimeSeconds.Max) * time.Second,
		}
	}
	if dto.ScrollProbability != nil {
		p.ScrollProbability = *dto.ScrollProbability
	}
	if dto.FormInteractionProbability != nil {
		p.FormInteractionProbability = *dto.FormInteractionProbability
	}
	if dto.Goal != nil {
		p.Goal = toDomainGoal(*dto.Goal)
	}
	return p
}

// toDomainGoal maps the free-form goal params onto the closed variant set.
// Unknown tags keep their tag and carry no payload; they fail the mission
// at execution time.
func toDomainGoal(dto GoalDTO) *traffic.Goal {
	goal := &traffic.Goal{Type: traffic.MissionType(dto.Type)}
	switch goal.Type {
	case traffic.MissionCollectWebVitals:
		goal.CollectWebVitals = &traffic.CollectWebVitalsParams{
			PagesToVisit: paramInt(dto.Params, "pages_to_visit"),
		}
	case traffic.MissionFindAndClick:
		goal.FindAndClick = &traffic.FindAndClickParams{
			TargetText: paramString(dto.Params, "target_text"),
		}
	case traffic.MissionFillForm:
		goal.FillForm = &traffic.FillFormParams{
			TargetSelector: paramString(dto.Params, "target_selector"),
		}
	}
	return goal
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func paramInt(params map[string]any, key string) int {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func toPersonaDTO(p traffic.Persona) PersonaDTO {
	dto := PersonaDTO{
		Name:            p.Name,
		GoalKeywords:    p.GoalKeywords,
		GenericKeywords: p.GenericKeywords,
		NavigationDepth: &RangeDTO{Min: p.NavigationDepth.Min, Max: p.NavigationDepth.Max},
		DwellTimeSeconds: &RangeDTO{
			Min: int(p.DwellTime.Min / time.Second),
			Max: int(p.DwellTime.Max / time.Second),
		},
		CanFillForms:               p.CanFillForms,
		ScrollProbability:          &p.ScrollProbability,
		FormInteractionProbability: &p.FormInteractionProbability,
	}
	if p.Goal != nil {
		dto.Goal = toGoalDTO(p.Goal)
	}
	return dto
}

func toGoalDTO(g *traffic.Goal) *GoalDTO {
	dto := &GoalDTO{Type: string(g.Type), Params: map[string]any{}}
	switch {
	case g.CollectWebVitals != nil:
		dto.Params["pages_to_visit"] = g.CollectWebVitals.PagesToVisit
	case g.FindAndClick != nil:
		dto.Params["target_text"] = g.FindAndClick.TargetText
	case g.FillForm != nil:
		dto.Params["target_selector"] = g.FillForm.TargetSelector
	}
	return dto
}

func toConfigResponse(cfg traffic.Config) ConfigResponse {
	personas := make([]PersonaDTO, len(cfg.Personas))
	for i, p := range cfg.Personas {
		personas[i] = toPersonaDTO(p)
	}
	return ConfigResponse{
		TargetURL:            cfg.TargetURL,
		TotalSessions:        cfg.TotalSessions,
		MaxConcurrent:        cfg.MaxConcurrent,
		Headless:             cfg.Headless,
		Proxies:              cfg.Proxies,
		ReturningVisitorRate: cfg.ReturningVisitorRate,
		NavigationTimeoutSec: int(cfg.NavigationTimeout / time.Second),
		MaxRetriesPerSession: cfg.MaxRetriesPerSession,
		Personas:             personas,
		GenderDistribution:   cfg.GenderDistribution,
		DeviceDistribution:   cfg.DeviceDistribution,
		AgeDistribution:      cfg.AgeDistribution,
		CountryDistribution:  cfg.CountryDistribution,
		ReferrerSources:      cfg.ReferrerSources,
		ModeType:             cfg.ModeType.String(),
		NetworkType:          cfg.NetworkType.String(),
		RampUpRate:           cfg.RampUpRate,
	}
}

func toStatsDTO(s traffic.StatsSnapshot) StatsDTO {
	return StatsDTO{
		Total:                s.Total,
		Successful:           s.Successful,
		Failed:               s.Failed,
		Completed:            s.Completed,
		AvgSuccessDurationMs: s.AvgSuccessDuration().Milliseconds(),
	}
}

func toRunResponse(run *simulation.Run, stats traffic.StatsSnapshot) *RunResponse {
	return &RunResponse{
		ID:            run.ID.String(),
		Name:          run.Name,
		Status:        run.Status.String(),
		TargetURL:     run.Config.TargetURL,
		TotalSessions: run.Config.TotalSessions,
		MaxConcurrent: run.Config.MaxConcurrent,
		Stats:         toStatsDTO(stats),
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		LastError:     run.LastError,
		CreatedAt:     run.CreatedAt,
	}
}

// persistedStats rebuilds a snapshot from the run's stored counters
func persistedStats(run *simulation.Run) traffic.StatsSnapshot {
	return traffic.StatsSnapshot{
		Total:      int64(run.TotalSessions),
		Successful: int64(run.SuccessfulSessions),
		Failed:     int64(run.FailedSessions),
		Completed:  int64(run.CompletedSessions),
	}
}
