package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apptraffic "github.com/trafficsim/backend/internal/application/traffic"
	"github.com/trafficsim/backend/internal/domain/fingerprint"
	"github.com/trafficsim/backend/internal/domain/shared"
	"github.com/trafficsim/backend/internal/domain/simulation"
	"github.com/trafficsim/backend/internal/domain/traffic"
	"github.com/trafficsim/backend/internal/infrastructure/telemetry"
)

// Service owns the run lifecycle: it builds and validates configurations,
// persists run records, starts orchestrators, and tracks active runs in
// an explicit registry keyed by run id.
type Service struct {
	runs       simulation.RunRepository
	capability traffic.Capability
	profiles   traffic.ProfileStore
	publisher  shared.EventPublisher
	runMetrics *telemetry.RunMetrics
	logger     *zap.Logger
	maxActive  int
	listLimit  int

	mu     sync.RWMutex
	active map[uuid.UUID]*activeRun
}

// activeRun is one in-flight orchestrator with its cancel handle
type activeRun struct {
	orch          *apptraffic.Orchestrator
	cancel        context.CancelFunc
	done          chan struct{}
	stopRequested atomic.Bool
}

// NewService creates a new simulation Service
func NewService(
	runs simulation.RunRepository,
	capability traffic.Capability,
	profiles traffic.ProfileStore,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		runs:       runs,
		capability: capability,
		profiles:   profiles,
		publisher:  publisher,
		logger:     logger,
		active:     make(map[uuid.UUID]*activeRun),
	}
}

// SetRunMetrics wires the run metrics collector. Orchestrators created
// after this call record session outcomes on it.
func (s *Service) SetRunMetrics(rm *telemetry.RunMetrics) {
	s.runMetrics = rm
}

// SetMaxActiveRuns caps the number of concurrently running orchestrators.
// Zero or negative means unlimited.
func (s *Service) SetMaxActiveRuns(n int) {
	s.maxActive = n
}

// SetListLimit overrides the default page size for run listings
func (s *Service) SetListLimit(n int) {
	if n > 0 {
		s.listLimit = n
	}
}

// =============================================================================
// Config Operations
// =============================================================================

// DefaultConfig returns the construction defaults as a response view
func (s *Service) DefaultConfig() ConfigResponse {
	cfg := traffic.DefaultConfig()
	if cfg.CountryDistribution == nil {
		cfg.CountryDistribution = traffic.Distribution(fingerprint.CountryWeights())
	}
	return toConfigResponse(cfg)
}

// DefaultPersonas returns the built-in persona catalog
func (s *Service) DefaultPersonas() []PersonaDTO {
	personas := traffic.DefaultPersonas()
	out := make([]PersonaDTO, len(personas))
	for i, p := range personas {
		out[i] = toPersonaDTO(p)
	}
	return out
}

// ValidateConfig checks a run configuration without starting anything
func (s *Service) ValidateConfig(req RunConfigRequest) ValidateConfigResponse {
	if _, err := s.buildConfig(req); err != nil {
		var cfgErr *traffic.ConfigurationError
		if errors.As(err, &cfgErr) {
			return ValidateConfigResponse{Valid: false, Field: cfgErr.Field, Error: cfgErr.Message}
		}
		return ValidateConfigResponse{Valid: false, Error: err.Error()}
	}
	return ValidateConfigResponse{Valid: true}
}

// buildConfig overlays the request onto the defaults and validates
func (s *Service) buildConfig(req RunConfigRequest) (*traffic.Config, error) {
	cfg := traffic.DefaultConfig()
	cfg.TargetURL = req.TargetURL
	cfg.TotalSessions = req.TotalSessions
	cfg.MaxConcurrent = req.MaxConcurrent
	if req.Headless != nil {
		cfg.Headless = *req.Headless
	}
	cfg.Proxies = req.Proxies
	if len(cfg.Proxies) == 0 && req.ProxyFile != "" {
		cfg.Proxies = loadProxyFile(req.ProxyFile, s.logger)
	}
	if req.ReturningVisitorRate != nil {
		cfg.ReturningVisitorRate = *req.ReturningVisitorRate
	}
	if req.NavigationTimeoutSec != nil {
		cfg.NavigationTimeout = time.Duration(*req.NavigationTimeoutSec) * time.Second
	}
	if req.MaxRetriesPerSession != nil {
		cfg.MaxRetriesPerSession = *req.MaxRetriesPerSession
	}
	switch {
	case len(req.Personas) > 0:
		personas := make([]traffic.Persona, len(req.Personas))
		for i, dto := range req.Personas {
			personas[i] = toDomainPersona(dto)
		}
		cfg.Personas = personas
	case req.PersonasFile != "":
		personas, err := LoadPersonasFile(req.PersonasFile)
		if err != nil {
			return nil, err
		}
		cfg.Personas = personas
	}
	if req.GenderDistribution != nil {
		cfg.GenderDistribution = req.GenderDistribution
	}
	if req.DeviceDistribution != nil {
		cfg.DeviceDistribution = req.DeviceDistribution
	}
	if req.AgeDistribution != nil {
		cfg.AgeDistribution = req.AgeDistribution
	}
	if req.CountryDistribution != nil {
		cfg.CountryDistribution = req.CountryDistribution
	}
	if len(req.ReferrerSources) > 0 {
		cfg.ReferrerSources = req.ReferrerSources
	}
	if req.ModeType != "" {
		cfg.ModeType = traffic.ModeType(req.ModeType)
	}
	if req.NetworkType != "" {
		cfg.NetworkType = traffic.NetworkType(req.NetworkType)
	}
	cfg.RampUpRate = req.RampUpRate
	return traffic.NewConfig(cfg)
}

// =============================================================================
// Run Lifecycle Operations
// =============================================================================

// StartRun validates the config, persists a new run and starts its
// orchestrator asynchronously.
func (s *Service) StartRun(ctx context.Context, req RunConfigRequest) (*StartRunResponse, error) {
	if s.maxActive > 0 {
		s.mu.RLock()
		n := len(s.active)
		s.mu.RUnlock()
		if n >= s.maxActive {
			return nil, shared.NewDomainError("TOO_MANY_RUNS", "Maximum number of active runs reached")
		}
	}

	cfg, err := s.buildConfig(req)
	if err != nil {
		return nil, err
	}
	run, err := simulation.NewRun(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	orchOpts := []apptraffic.Option{apptraffic.WithRunID(run.ID)}
	if s.runMetrics != nil {
		orchOpts = append(orchOpts, apptraffic.WithRunMetrics(s.runMetrics))
	}
	orch, err := apptraffic.NewOrchestrator(
		cfg,
		s.capability,
		s.profiles,
		s.publisher,
		s.logger.With(zap.String("run", run.Name)),
		orchOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if err := run.Start(); err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	// The run outlives the request; its context is detached on purpose.
	runCtx, cancel := context.WithCancel(context.Background())
	active := &activeRun{orch: orch, cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.active[run.ID] = active
	s.mu.Unlock()

	s.publish(simulation.NewRunStartedEvent(run))
	s.logger.Info("run started",
		zap.String("id", run.ID.String()),
		zap.String("name", run.Name),
		zap.String("target", cfg.TargetURL),
		zap.Int("total_sessions", cfg.TotalSessions),
		zap.Int("max_concurrent", cfg.MaxConcurrent))

	go s.execute(runCtx, run.ID, active)

	return &StartRunResponse{ID: run.ID.String(), Name: run.Name, Status: run.Status.String()}, nil
}

// execute drives one orchestrator to quiescence and records the terminal
// transition.
func (s *Service) execute(ctx context.Context, runID uuid.UUID, active *activeRun) {
	defer close(active.done)
	defer func() {
		s.mu.Lock()
		delete(s.active, runID)
		s.mu.Unlock()
		active.cancel()
	}()

	stats, runErr := active.orch.Run(ctx)

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := s.runs.FindByID(saveCtx, runID)
	if err != nil {
		s.logger.Error("loading run for terminal update failed",
			zap.String("id", runID.String()),
			zap.Error(err))
		return
	}

	switch {
	case runErr != nil:
		_ = run.Fail(stats, runErr)
		s.publish(simulation.NewRunFailedEvent(run, stats, runErr))
	case active.stopRequested.Load():
		_ = run.Stop(stats)
		s.publish(simulation.NewRunStoppedEvent(run, stats))
	default:
		_ = run.Complete(stats)
		s.publish(simulation.NewRunCompletedEvent(run, stats))
	}
	if err := s.runs.Save(saveCtx, run); err != nil {
		s.logger.Error("saving finished run failed",
			zap.String("id", runID.String()),
			zap.Error(err))
	}
	if s.runMetrics != nil {
		s.runMetrics.RecordRunFinished(saveCtx, run.Status.String())
	}

	s.logger.Info("run finished",
		zap.String("id", runID.String()),
		zap.String("status", run.Status.String()),
		zap.Int64("total", stats.Total),
		zap.Int64("successful", stats.Successful),
		zap.Int64("failed", stats.Failed))
}

// StopRun requests cooperative shutdown of an active run
func (s *Service) StopRun(ctx context.Context, id uuid.UUID) (*RunStatusResponse, error) {
	s.mu.RLock()
	active, ok := s.active[id]
	s.mu.RUnlock()
	if !ok {
		run, err := s.runs.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Run not found")
			}
			return nil, fmt.Errorf("failed to get run: %w", err)
		}
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Run is not active (status %s)", run.Status))
	}

	active.stopRequested.Store(true)
	active.cancel()
	s.logger.Info("run stop requested", zap.String("id", id.String()))

	return s.GetStatus(ctx, id)
}

// GetStatus returns the run's current state with live statistics while
// the run is in flight and persisted counters afterwards.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (*RunStatusResponse, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Run not found")
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	stats := persistedStats(run)
	s.mu.RLock()
	if active, ok := s.active[id]; ok {
		stats = active.orch.Stats()
	}
	s.mu.RUnlock()

	return &RunStatusResponse{
		ID:     run.ID.String(),
		Name:   run.Name,
		Status: run.Status.String(),
		Stats:  toStatsDTO(stats),
	}, nil
}

// ListRuns returns the most recent runs, newest first
func (s *Service) ListRuns(ctx context.Context, limit int) (*ListRunsResponse, error) {
	if limit <= 0 {
		limit = s.listLimit
	}
	if limit <= 0 {
		limit = 50
	}
	runs, err := s.runs.FindRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]RunResponse, len(runs))
	for i := range runs {
		run := &runs[i]
		stats := persistedStats(run)
		if active, ok := s.active[run.ID]; ok {
			stats = active.orch.Stats()
		}
		items[i] = *toRunResponse(run, stats)
	}
	return &ListRunsResponse{Items: items, Total: len(items)}, nil
}

// Shutdown stops every active run and waits for quiescence or ctx expiry
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.RLock()
	actives := make([]*activeRun, 0, len(s.active))
	for _, a := range s.active {
		actives = append(actives, a)
	}
	s.mu.RUnlock()

	for _, a := range actives {
		a.stopRequested.Store(true)
		a.cancel()
	}
	for _, a := range actives {
		select {
		case <-a.done:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) publish(event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), event); err != nil {
		s.logger.Warn("publishing run event failed",
			zap.String("event", event.EventType()),
			zap.Error(err))
	}
}
