package traffic

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/traffic"
)

const (
	// maxBotPause caps compressed dwell pauses in Bot mode
	maxBotPause = 2 * time.Second
	// botDwellDivisor compresses sampled dwell times in Bot mode
	botDwellDivisor = 20
)

// Engine walks a target site the way a persona would: dwell on each page,
// optionally simulate pointer and scroll activity, execute the persona's
// mission, and follow keyword-scored links. One Engine serves every
// session of a run; per-session state lives in a browseSession.
type Engine struct {
	mode   traffic.ModeType
	logger *zap.Logger
}

// NewEngine creates an engine for the given interaction mode
func NewEngine(mode traffic.ModeType, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{mode: mode, logger: logger}
}

// BrowseResult summarizes one session's behavior on the site
type BrowseResult struct {
	PagesVisited int
	Mission      *MissionResult
	Metrics      []PageMetrics
}

// Run executes the persona against an already-navigated page. A mission
// that does not accomplish its goal degrades to exploratory navigation,
// exactly once. The returned error is non-nil only for context
// cancellation; everything else becomes part of the result.
func (e *Engine) Run(ctx context.Context, page traffic.Page, persona traffic.Persona, rng *rand.Rand) (*BrowseResult, error) {
	base, err := url.Parse(page.URL())
	if err != nil || base.Host == "" {
		base = nil
	}
	s := &browseSession{
		engine:  e,
		page:    page,
		persona: persona,
		rng:     rng,
		faker:   gofakeit.New(uint64(rng.Int63())),
		base:    base,
		result:  &BrowseResult{PagesVisited: 1},
	}
	return s.run(ctx)
}

// browseSession is the per-session behavior state
type browseSession struct {
	engine  *Engine
	page    traffic.Page
	persona traffic.Persona
	rng     *rand.Rand
	faker   *gofakeit.Faker
	base    *url.URL
	result  *BrowseResult
}

func (s *browseSession) run(ctx context.Context) (*BrowseResult, error) {
	if s.persona.Goal != nil {
		res := s.executeMission(ctx)
		s.result.Mission = res
		if err := ctx.Err(); err != nil {
			return s.result, err
		}
		if res.Accomplished {
			return s.result, nil
		}
		s.engine.logger.Debug("mission not accomplished, degrading to exploration",
			zap.String("mission", res.Type.String()),
			zap.String("details", res.Details))
	}
	if err := s.explore(ctx); err != nil {
		return s.result, err
	}
	return s.result, nil
}

// explore follows keyword-scored links for a depth drawn from the persona,
// pausing and interacting on each page. It stops early when no scoreable
// link remains or a navigation step fails.
func (s *browseSession) explore(ctx context.Context) error {
	depth := s.persona.NavigationDepth.Sample(s.rng)
	for step := 0; step < depth; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.dwell(ctx)
		if s.engine.mode == traffic.ModeHuman {
			s.simulateHumanInteraction(ctx)
		}
		if s.persona.CanFillForms && s.rng.Float64() < s.persona.FormInteractionProbability {
			s.interactWithForm(ctx)
		}
		moved, err := s.advance(ctx)
		if err != nil {
			return err
		}
		if !moved {
			s.engine.logger.Debug("no scoreable links left, ending exploration",
				zap.String("url", s.page.URL()),
				zap.Int("step", step))
			return nil
		}
	}
	return nil
}

// advance performs one scored link-follow. It returns false when the
// current page offers no candidate or the follow failed; only context
// cancellation is returned as an error.
func (s *browseSession) advance(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	candidates, err := s.scoreLinks(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.engine.logger.Debug("link collection failed", zap.Error(err))
		return false, nil
	}
	if len(candidates) == 0 {
		return false, nil
	}
	chosen := chooseCandidate(s.rng, candidates)
	if err := s.follow(ctx, chosen); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.engine.logger.Debug("navigation step failed",
			zap.String("href", chosen.href),
			zap.Error(err))
		return false, nil
	}
	s.result.PagesVisited++
	return true, nil
}

// linkCandidate is a scoreable same-origin link on the current page
type linkCandidate struct {
	el    traffic.Element
	href  string
	text  string
	score int
}

// scoreLinks collects visible same-origin anchors and scores each as
// 1 plus the summed weights of persona keywords appearing in its text or
// URL. Links matching no keyword are excluded.
func (s *browseSession) scoreLinks(ctx context.Context) ([]linkCandidate, error) {
	els, err := s.page.LocateAll(ctx, "a[href]")
	if err != nil {
		return nil, err
	}
	candidates := make([]linkCandidate, 0, len(els))
	for _, el := range els {
		visible, err := el.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		href, err := el.Attribute(ctx, "href")
		if err != nil {
			continue
		}
		resolved, ok := s.resolveSameOrigin(href)
		if !ok {
			continue
		}
		text, _ := el.Text(ctx)
		score := s.scoreLink(text, resolved)
		if score <= 1 {
			continue
		}
		candidates = append(candidates, linkCandidate{
			el:    el,
			href:  resolved,
			text:  strings.TrimSpace(text),
			score: score,
		})
	}
	return candidates, nil
}

// resolveSameOrigin resolves href against the session origin and rejects
// mail/tel/javascript schemes, fragments and cross-origin targets.
func (s *browseSession) resolveSameOrigin(href string) (string, bool) {
	h := strings.TrimSpace(href)
	lower := strings.ToLower(h)
	if h == "" || strings.HasPrefix(h, "#") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:") {
		return "", false
	}
	if s.base == nil {
		return "", false
	}
	ref, err := url.Parse(h)
	if err != nil {
		return "", false
	}
	abs := s.base.ResolveReference(ref)
	if abs.Host != s.base.Host {
		return "", false
	}
	return abs.String(), true
}

func (s *browseSession) scoreLink(text, href string) int {
	haystack := strings.ToLower(text + " " + href)
	score := 1
	for kw, w := range s.persona.GoalKeywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			score += w
		}
	}
	for kw, w := range s.persona.GenericKeywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			score += w
		}
	}
	return score
}

// chooseCandidate draws one candidate with probability proportional to
// its score.
func chooseCandidate(rng *rand.Rand, candidates []linkCandidate) linkCandidate {
	total := 0
	for _, c := range candidates {
		total += c.score
	}
	n := rng.Intn(total)
	for _, c := range candidates {
		n -= c.score
		if n < 0 {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// follow activates a chosen link: hover-then-click in Human mode, with a
// direct navigation fallback when clicking fails.
func (s *browseSession) follow(ctx context.Context, c linkCandidate) error {
	if c.el != nil {
		if s.engine.mode == traffic.ModeHuman {
			_ = c.el.Hover(ctx)
			s.pause(ctx, 150, 400)
		}
		if err := c.el.Click(ctx); err == nil {
			return s.page.WaitReady(ctx, traffic.WaitDOMContentLoaded)
		}
	}
	return s.page.Navigate(ctx, c.href, traffic.WaitDOMContentLoaded)
}

// dwell pauses for a per-page reading time drawn from the persona range.
// Bot mode compresses the pause.
func (s *browseSession) dwell(ctx context.Context) {
	d := s.persona.DwellTime.Sample(s.rng)
	if s.engine.mode != traffic.ModeHuman {
		d /= botDwellDivisor
		if d > maxBotPause {
			d = maxBotPause
		}
	}
	sleepCtx(ctx, d)
}

// pause sleeps for a uniform duration between minMs and maxMs
func (s *browseSession) pause(ctx context.Context, minMs, maxMs int) {
	d := time.Duration(minMs+s.rng.Intn(maxMs-minMs+1)) * time.Millisecond
	if s.engine.mode != traffic.ModeHuman {
		d /= botDwellDivisor
	}
	sleepCtx(ctx, d)
}

// simulateHumanInteraction moves the pointer a few times and, with the
// persona's scroll probability, wheels down one to two and a half
// viewport heights in small deltas.
func (s *browseSession) simulateHumanInteraction(ctx context.Context) {
	vp := s.page.Viewport()
	moves := 2 + s.rng.Intn(4)
	for i := 0; i < moves; i++ {
		if ctx.Err() != nil {
			return
		}
		x := s.rng.Float64() * float64(vp.Width)
		y := s.rng.Float64() * float64(vp.Height)
		if err := s.page.MoveMouse(ctx, x, y); err != nil {
			return
		}
		s.pause(ctx, 100, 500)
	}
	if s.rng.Float64() >= s.persona.ScrollProbability {
		return
	}
	target := float64(vp.Height) * (1.0 + 1.5*s.rng.Float64())
	scrolled := 0.0
	for scrolled < target {
		if ctx.Err() != nil {
			return
		}
		delta := 80 + s.rng.Float64()*220
		if err := s.page.ScrollBy(ctx, 0, delta); err != nil {
			return
		}
		scrolled += delta
		s.pause(ctx, 200, 600)
	}
}

// interactWithForm opportunistically fills fields of the first visible
// form without submitting it.
func (s *browseSession) interactWithForm(ctx context.Context) {
	form, ok := s.findVisibleForm(ctx, "form")
	if !ok {
		return
	}
	filled, err := s.fillFormInputs(ctx, form)
	if err != nil || filled == 0 {
		return
	}
	s.engine.logger.Debug("interacted with form",
		zap.Int("fields", filled),
		zap.String("url", s.page.URL()))
}

// findVisibleForm returns the first visible element matching selector
func (s *browseSession) findVisibleForm(ctx context.Context, selector string) (traffic.Element, bool) {
	els, err := s.page.LocateAll(ctx, selector)
	if err != nil {
		return nil, false
	}
	for _, el := range els {
		visible, err := el.Visible(ctx)
		if err == nil && visible {
			return el, true
		}
	}
	return nil, false
}

// sleepCtx sleeps for d or until the context is done
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
