package traffic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/traffic"
)

const (
	// defaultVitalsPages is used when a collect_web_vitals goal carries no page count
	defaultVitalsPages = 3
	// networkIdleTimeout bounds the post-click/post-submit settle wait
	networkIdleTimeout = 10 * time.Second
	// visibleWaitTimeout bounds how long a matched element may take to become visible
	visibleWaitTimeout = 3 * time.Second

	clickableSelector = "a, button, [role='button'], input[type='submit'], input[type='button']"
	submitSelector    = "button[type='submit'], input[type='submit'], button"
)

// MissionStatus tracks the mission lifecycle within one session
type MissionStatus string

const (
	MissionNotStarted MissionStatus = "not_started"
	MissionRunning    MissionStatus = "running"
	MissionCompleted  MissionStatus = "completed"
	MissionFailed     MissionStatus = "failed"
)

// String returns the string representation of MissionStatus
func (m MissionStatus) String() string {
	return string(m)
}

// MissionResult is the terminal outcome of one mission execution. Mission
// failures never propagate as errors; they degrade the session to
// exploratory navigation.
type MissionResult struct {
	Type         traffic.MissionType
	Status       MissionStatus
	Accomplished bool
	Details      string
}

// executeMission dispatches over the closed set of mission kinds. Unknown
// tags and runtime panics become failed results, never session errors.
func (s *browseSession) executeMission(ctx context.Context) (result *MissionResult) {
	goal := s.persona.Goal
	result = &MissionResult{Type: goal.Type, Status: MissionRunning}
	defer func() {
		if r := recover(); r != nil {
			result.Status = MissionFailed
			result.Accomplished = false
			result.Details = fmt.Sprintf("mission panicked: %v", r)
			s.engine.logger.Error("mission panicked",
				zap.String("mission", goal.Type.String()),
				zap.Any("panic", r))
		}
	}()

	switch goal.Type {
	case traffic.MissionCollectWebVitals:
		s.collectWebVitals(ctx, result, goal.CollectWebVitals)
	case traffic.MissionFindAndClick:
		s.findAndClick(ctx, result, goal.FindAndClick)
	case traffic.MissionFillForm:
		s.fillForm(ctx, result, goal.FillForm)
	default:
		result.Status = MissionFailed
		result.Details = fmt.Sprintf("unknown mission type %q", goal.Type)
	}

	s.engine.logger.Debug("mission finished",
		zap.String("mission", result.Type.String()),
		zap.String("status", result.Status.String()),
		zap.Bool("accomplished", result.Accomplished),
		zap.String("details", result.Details))
	return result
}

// collectWebVitals samples performance timings on up to N pages, advancing
// between pages via scored links. It accomplishes unconditionally: pages
// without a usable snapshot are tolerated.
func (s *browseSession) collectWebVitals(ctx context.Context, result *MissionResult, params *traffic.CollectWebVitalsParams) {
	pages := defaultVitalsPages
	if params != nil && params.PagesToVisit > 0 {
		pages = params.PagesToVisit
	}
	collected := 0
	for i := 0; i < pages; i++ {
		if ctx.Err() != nil {
			break
		}
		if m, ok := s.collectPageMetrics(ctx); ok {
			s.result.Metrics = append(s.result.Metrics, m)
			collected++
		}
		if i == pages-1 {
			break
		}
		s.dwell(ctx)
		moved, err := s.advance(ctx)
		if err != nil || !moved {
			break
		}
	}
	result.Status = MissionCompleted
	result.Accomplished = true
	result.Details = fmt.Sprintf("collected performance metrics on %d pages", collected)
}

// findAndClick searches each visited page for a clickable element whose
// text matches one of the "|"-separated alternatives, hopping via scored
// links between searches. Accomplished only when a matched element became
// visible, was clicked, and the page settled.
func (s *browseSession) findAndClick(ctx context.Context, result *MissionResult, params *traffic.FindAndClickParams) {
	if params == nil || strings.TrimSpace(params.TargetText) == "" {
		result.Status = MissionFailed
		result.Details = "no target text configured"
		return
	}
	alternatives := splitAlternatives(params.TargetText)
	hops := s.persona.NavigationDepth.Sample(s.rng)
	sawHidden := false
	for hop := 0; hop <= hops; hop++ {
		if ctx.Err() != nil {
			break
		}
		matches, err := s.matchClickable(ctx, alternatives)
		if err != nil && ctx.Err() != nil {
			break
		}
		for _, m := range matches {
			if !s.waitVisible(ctx, m.el, visibleWaitTimeout) {
				sawHidden = true
				continue
			}
			if err := m.el.Click(ctx); err != nil {
				result.Status = MissionFailed
				result.Details = fmt.Sprintf("clicking %q failed: %v", m.label, err)
				return
			}
			if !s.settle(ctx) {
				result.Status = MissionFailed
				result.Details = fmt.Sprintf("timed out waiting for network idle after clicking %q", m.label)
				return
			}
			result.Status = MissionCompleted
			result.Accomplished = true
			result.Details = fmt.Sprintf("clicked element matching %q", m.label)
			return
		}
		if hop == hops {
			break
		}
		moved, err := s.advance(ctx)
		if err != nil || !moved {
			break
		}
	}
	result.Status = MissionFailed
	if sawHidden {
		result.Details = fmt.Sprintf("element matching %q never became visible", params.TargetText)
		return
	}
	result.Details = fmt.Sprintf("no clickable element matching %q found", params.TargetText)
}

// fillForm hunts for a visible form matching the selector, fills its
// text-like inputs with synthetic values and submits it.
func (s *browseSession) fillForm(ctx context.Context, result *MissionResult, params *traffic.FillFormParams) {
	selector := "form"
	if params != nil && strings.TrimSpace(params.TargetSelector) != "" {
		selector = params.TargetSelector
	}
	hops := s.persona.NavigationDepth.Sample(s.rng)
	for hop := 0; hop <= hops; hop++ {
		if ctx.Err() != nil {
			break
		}
		form, ok := s.findVisibleForm(ctx, selector)
		if ok {
			filled, err := s.fillFormInputs(ctx, form)
			if err != nil {
				result.Status = MissionFailed
				result.Details = fmt.Sprintf("filling form failed: %v", err)
				return
			}
			submitted, err := s.submitForm(ctx, form)
			if err != nil {
				result.Status = MissionFailed
				result.Details = err.Error()
				return
			}
			if !submitted {
				result.Status = MissionFailed
				result.Details = "form has no visible submit control"
				return
			}
			result.Status = MissionCompleted
			result.Accomplished = true
			result.Details = fmt.Sprintf("filled %d fields and submitted", filled)
			return
		}
		if hop == hops {
			break
		}
		moved, err := s.advance(ctx)
		if err != nil || !moved {
			break
		}
	}
	result.Status = MissionFailed
	result.Details = fmt.Sprintf("no visible form matching %q", selector)
}

// clickMatch is a clickable element whose label matched the target text
type clickMatch struct {
	el    traffic.Element
	label string
}

// matchClickable returns clickable elements whose text (or value, for
// input buttons) contains one of the lowercase alternatives.
func (s *browseSession) matchClickable(ctx context.Context, alternatives []string) ([]clickMatch, error) {
	els, err := s.page.LocateAll(ctx, clickableSelector)
	if err != nil {
		return nil, err
	}
	var matches []clickMatch
	for _, el := range els {
		label := ""
		if text, err := el.Text(ctx); err == nil {
			label = strings.TrimSpace(text)
		}
		if label == "" {
			if v, err := el.Attribute(ctx, "value"); err == nil {
				label = strings.TrimSpace(v)
			}
		}
		if label == "" {
			continue
		}
		lower := strings.ToLower(label)
		for _, alt := range alternatives {
			if strings.Contains(lower, alt) {
				matches = append(matches, clickMatch{el: el, label: label})
				break
			}
		}
	}
	return matches, nil
}

// waitVisible polls the element until it is visible or the timeout expires
func (s *browseSession) waitVisible(ctx context.Context, el traffic.Element, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		visible, err := el.Visible(ctx)
		if err == nil && visible {
			return true
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			return false
		}
		sleepCtx(ctx, 250*time.Millisecond)
	}
}

// settle waits for network idle after an interaction, bounded by
// networkIdleTimeout.
func (s *browseSession) settle(ctx context.Context) bool {
	waitCtx, cancel := context.WithTimeout(ctx, networkIdleTimeout)
	defer cancel()
	return s.page.WaitReady(waitCtx, traffic.WaitNetworkIdle) == nil
}

// splitAlternatives lowercases and splits "|"-separated match phrases
func splitAlternatives(target string) []string {
	parts := strings.Split(strings.ToLower(target), "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
