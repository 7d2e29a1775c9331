package traffic

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
	"github.com/trafficsim/backend/internal/domain/shared"
	"github.com/trafficsim/backend/internal/domain/simulation"
	"github.com/trafficsim/backend/internal/domain/traffic"
	"github.com/trafficsim/backend/internal/infrastructure/telemetry"
)

// closeTimeout bounds browsing-context teardown after a session ends
const closeTimeout = 15 * time.Second

// Orchestrator drives one simulation run: it admits sessions under the
// configured concurrency cap, gives each session its own random stream,
// handles retry on transient failures, and aggregates run statistics.
type Orchestrator struct {
	cfg        *traffic.Config
	capability traffic.Capability
	profiles   traffic.ProfileStore
	publisher  shared.EventPublisher
	synth      *fingerprint.Synthesizer
	engine     *Engine
	logger     *zap.Logger
	stats      *traffic.Stats
	runID      uuid.UUID
	limiter    *rate.Limiter
	metrics    *telemetry.RunMetrics

	mu      sync.Mutex
	rng     *rand.Rand
	running bool
	cancel  context.CancelFunc
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRandomSource fixes the orchestrator's random source. Each session
// derives its own stream from it, so a fixed seed reproduces a run.
func WithRandomSource(src rand.Source) Option {
	return func(o *Orchestrator) {
		o.rng = rand.New(src)
	}
}

// WithRunID tags published events with the owning run
func WithRunID(id uuid.UUID) Option {
	return func(o *Orchestrator) {
		o.runID = id
	}
}

// WithSynthesizer overrides the fingerprint synthesizer
func WithSynthesizer(s *fingerprint.Synthesizer) Option {
	return func(o *Orchestrator) {
		o.synth = s
	}
}

// WithRunMetrics wires session outcome counters. May be nil.
func WithRunMetrics(rm *telemetry.RunMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = rm
	}
}

// NewOrchestrator creates an orchestrator for a validated configuration.
// The publisher may be nil; progress events are then skipped.
func NewOrchestrator(
	cfg *traffic.Config,
	capability traffic.Capability,
	profiles traffic.ProfileStore,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if capability == nil {
		return nil, fmt.Errorf("capability is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:        cfg,
		capability: capability,
		profiles:   profiles,
		publisher:  publisher,
		engine:     NewEngine(cfg.ModeType, logger),
		logger:     logger,
		stats:      &traffic.Stats{},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.synth == nil {
		o.synth = fingerprint.NewSynthesizer(rand.NewSource(o.rng.Int63()))
	}
	if cfg.RampUpRate > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RampUpRate), 1)
	}
	return o, nil
}

// Run executes the configured number of sessions and returns the final
// statistics after every admitted session has finished. Cancelling ctx
// (or calling Stop) ends admission and lets in-flight sessions exit at
// their next checkpoint.
func (o *Orchestrator) Run(ctx context.Context) (traffic.StatsSnapshot, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return traffic.StatsSnapshot{}, shared.NewDomainError("ALREADY_RUNNING", "Orchestrator is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
	}()

	o.logger.Info("simulation run starting",
		zap.String("target", o.cfg.TargetURL),
		zap.Int("total_sessions", o.cfg.TotalSessions),
		zap.Int("max_concurrent", o.cfg.MaxConcurrent),
		zap.String("engine", o.capability.Name()),
		zap.String("mode", o.cfg.ModeType.String()))

	sem := make(chan struct{}, o.cfg.MaxConcurrent)
	var wg sync.WaitGroup

admission:
	for no := 1; no <= o.cfg.TotalSessions; no++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(runCtx); err != nil {
				break
			}
		}
		select {
		case <-runCtx.Done():
			break admission
		case sem <- struct{}{}:
		}
		if runCtx.Err() != nil {
			<-sem
			break
		}
		o.stats.RecordAttempt()
		wg.Add(1)
		go func(no int, rng *rand.Rand) {
			defer wg.Done()
			defer func() { <-sem }()
			o.runSession(runCtx, no, rng)
		}(no, o.sessionRand())
	}
	wg.Wait()

	snapshot := o.stats.Snapshot()
	o.logger.Info("simulation run finished",
		zap.Int64("total", snapshot.Total),
		zap.Int64("successful", snapshot.Successful),
		zap.Int64("failed", snapshot.Failed),
		zap.Duration("avg_success_duration", snapshot.AvgSuccessDuration()))
	return snapshot, nil
}

// Stop requests cooperative shutdown of an in-flight run
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		o.logger.Info("stop requested")
		cancel()
	}
}

// Running reports whether a run is in flight
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Stats returns a point-in-time snapshot of the run statistics
func (o *Orchestrator) Stats() traffic.StatsSnapshot {
	return o.stats.Snapshot()
}

// sessionRand derives an independent random stream for one session
func (o *Orchestrator) sessionRand() *rand.Rand {
	o.mu.Lock()
	defer o.mu.Unlock()
	return rand.New(rand.NewSource(o.rng.Int63()))
}

// runSession owns one admitted session end to end: identity sampling,
// capability setup, behavior, retries. Every admitted session records
// exactly one of successful/failed plus completed.
func (o *Orchestrator) runSession(ctx context.Context, no int, rng *rand.Rand) {
	start := time.Now()
	personaName := ""
	succeeded := false
	defer o.stats.RecordCompleted()
	defer func() {
		if r := recover(); r != nil && !succeeded {
			o.stats.RecordFailure()
			err := fmt.Errorf("session panicked: %v", r)
			o.publish(simulation.NewSessionFailedEvent(o.runID, no, personaName, 0, "fatal", err))
			if o.metrics != nil {
				o.metrics.RecordSessionFailed(ctx, personaName, "fatal")
			}
			o.logger.Error("session panicked", zap.Int("session", no), zap.Any("panic", r))
		}
	}()

	demo := traffic.SampleDemographics(rng, o.cfg)
	persona := o.pickPersona(rng).WithDemographics(demo.Gender, demo.AgeRange)
	personaName = persona.Name
	profileID, storageState, returning := o.resolveProfile(ctx, rng)
	fp := o.synth.Synthesize(demo.Device, demo.Country, &fingerprint.AgeHint{
		Min: persona.AgeRange.Min,
		Max: persona.AgeRange.Max,
	})
	proxy := pickString(rng, o.cfg.Proxies)
	referrer := pickString(rng, o.cfg.ReferrerSources)

	o.publish(simulation.NewSessionStartedEvent(o.runID, no, persona.Name, demo.Device.String(), fp.Country, profileID, returning))
	o.logger.Info("session started",
		zap.Int("session", no),
		zap.String("persona", persona.Name),
		zap.String("device", demo.Device.String()),
		zap.String("country", fp.Country),
		zap.String("profile", profileID),
		zap.Bool("returning", returning))

	maxAttempts := 1 + o.cfg.MaxRetriesPerSession
	attempts := 0
	var lastErr error
	for attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++
		result, err := o.attempt(ctx, persona, fp, proxy, referrer, storageState, profileID, rng)
		if err == nil {
			succeeded = true
			duration := time.Since(start)
			o.stats.RecordSuccess(duration)
			missionType, missionOutcome := "", ""
			if result.Mission != nil {
				missionType = result.Mission.Type.String()
				missionOutcome = result.Mission.Status.String()
			}
			o.publish(simulation.NewSessionCompletedEvent(o.runID, no, persona.Name, duration.Milliseconds(), result.PagesVisited, missionType, missionOutcome))
			if o.metrics != nil {
				o.metrics.RecordSessionCompleted(ctx, persona.Name, duration, result.PagesVisited)
			}
			o.logger.Info("session completed",
				zap.Int("session", no),
				zap.Int("attempt", attempts),
				zap.Duration("duration", duration),
				zap.Int("pages", result.PagesVisited))
			return
		}
		lastErr = err
		if !traffic.IsTransient(err) {
			break
		}
		o.logger.Warn("transient session error, retrying",
			zap.Int("session", no),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
	}

	o.stats.RecordFailure()
	kind := classifyFailure(lastErr)
	o.publish(simulation.NewSessionFailedEvent(o.runID, no, persona.Name, attempts, kind, lastErr))
	if o.metrics != nil {
		o.metrics.RecordSessionFailed(ctx, persona.Name, kind)
	}
	o.logger.Error("session failed",
		zap.Int("session", no),
		zap.Int("attempts", attempts),
		zap.String("kind", kind),
		zap.Error(lastErr))
}

// attempt runs one capability lifecycle: open, navigate, behave, persist
// the profile, close. The context is recreated on every attempt.
func (o *Orchestrator) attempt(
	ctx context.Context,
	persona traffic.Persona,
	fp fingerprint.Fingerprint,
	proxy, referrer string,
	storageState []byte,
	profileID string,
	rng *rand.Rand,
) (*BrowseResult, error) {
	bc, err := o.capability.Open(ctx, traffic.ContextOptions{
		Fingerprint:       fp,
		Proxy:             proxy,
		Referrer:          referrer,
		StorageState:      storageState,
		Offline:           o.cfg.NetworkType == traffic.NetworkOffline,
		Headless:          o.cfg.Headless,
		NavigationTimeout: o.cfg.NavigationTimeout,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		// Teardown must succeed even when the run context is cancelled.
		closeCtx, cancelClose := context.WithTimeout(context.Background(), closeTimeout)
		defer cancelClose()
		if err := bc.Close(closeCtx); err != nil {
			o.logger.Warn("closing browsing context failed", zap.Error(err))
		}
	}()

	page, err := bc.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := page.Navigate(ctx, o.cfg.TargetURL, traffic.WaitDOMContentLoaded); err != nil {
		return nil, err
	}
	result, err := o.engine.Run(ctx, page, persona, rng)
	if err != nil {
		return nil, err
	}
	o.persistProfile(ctx, bc, profileID)
	return result, nil
}

// resolveProfile decides between a returning visitor (existing profile
// with stored state) and a fresh identity. A returning draw without any
// stored profile falls back to a fresh one.
func (o *Orchestrator) resolveProfile(ctx context.Context, rng *rand.Rand) (id string, storageState []byte, returning bool) {
	if rng.Float64()*100 < o.cfg.ReturningVisitorRate {
		ids, err := o.profiles.List(ctx)
		if err != nil {
			o.logger.Warn("listing visitor profiles failed", zap.Error(err))
		} else if len(ids) > 0 {
			chosen := ids[rng.Intn(len(ids))]
			p, err := o.profiles.Load(ctx, chosen)
			if err != nil {
				o.logger.Warn("loading visitor profile failed", zap.String("profile", chosen), zap.Error(err))
			} else {
				return p.ID, p.StorageState, true
			}
		}
	}
	return traffic.NewProfileID(rng), nil, false
}

// persistProfile captures the context's storage state under the profile
// id. Failures only degrade returning-visitor fidelity, so they are
// logged and swallowed.
func (o *Orchestrator) persistProfile(ctx context.Context, bc traffic.BrowsingContext, profileID string) {
	state, err := bc.StorageState(ctx)
	if err != nil {
		o.logger.Warn("capturing storage state failed", zap.String("profile", profileID), zap.Error(err))
		return
	}
	if err := o.profiles.Save(ctx, &traffic.Profile{ID: profileID, StorageState: state}); err != nil {
		o.logger.Warn("saving visitor profile failed", zap.String("profile", profileID), zap.Error(err))
	}
}

func (o *Orchestrator) pickPersona(rng *rand.Rand) traffic.Persona {
	return o.cfg.Personas[rng.Intn(len(o.cfg.Personas))]
}

// publish sends a progress event when a publisher is wired. Delivery is
// detached from the run context so terminal events survive cancellation.
func (o *Orchestrator) publish(event shared.DomainEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(context.Background(), event); err != nil {
		o.logger.Warn("publishing progress event failed",
			zap.String("event", event.EventType()),
			zap.Error(err))
	}
}

func classifyFailure(err error) string {
	switch {
	case err == nil:
		return ""
	case traffic.IsTransient(err):
		return "transient"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "fatal"
	}
}

func pickString(rng *rand.Rand, values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[rng.Intn(len(values))]
}
