package traffic

import (
	"context"

	"go.uber.org/zap"
)

// PageMetrics is one page's performance timing snapshot, in milliseconds
// relative to navigation start (TTFB relative to request start).
type PageMetrics struct {
	URL                string  `json:"url"`
	TTFBMs             float64 `json:"ttfb_ms"`
	FCPMs              float64 `json:"fcp_ms"`
	DOMContentLoadedMs float64 `json:"dom_content_loaded_ms"`
	LoadMs             float64 `json:"load_ms"`
}

// performanceScript reads the Navigation Timing and Paint Timing entries.
// Pages without a navigation entry yield an empty object.
const performanceScript = `(() => {
	const nav = performance.getEntriesByType('navigation')[0];
	if (!nav) {
		return {};
	}
	const paint = performance.getEntriesByType('paint').find((p) => p.name === 'first-contentful-paint');
	return {
		ttfb_ms: nav.responseStart - nav.requestStart,
		fcp_ms: paint ? paint.startTime : 0,
		dom_content_loaded_ms: nav.domContentLoadedEventEnd - nav.startTime,
		load_ms: nav.loadEventEnd - nav.startTime
	};
})()`

// collectPageMetrics evaluates the performance snapshot on the current
// page. Missing or partial snapshots are tolerated.
func (s *browseSession) collectPageMetrics(ctx context.Context) (PageMetrics, bool) {
	var m PageMetrics
	if err := s.page.Evaluate(ctx, performanceScript, &m); err != nil {
		s.engine.logger.Debug("performance snapshot unavailable",
			zap.String("url", s.page.URL()),
			zap.Error(err))
		return PageMetrics{}, false
	}
	m.URL = s.page.URL()
	s.engine.logger.Debug("web vitals",
		zap.String("url", m.URL),
		zap.Float64("ttfb_ms", m.TTFBMs),
		zap.Float64("fcp_ms", m.FCPMs),
		zap.Float64("dom_content_loaded_ms", m.DOMContentLoadedMs),
		zap.Float64("load_ms", m.LoadMs))
	return m, true
}
