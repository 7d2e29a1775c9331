package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
	"github.com/trafficsim/backend/internal/domain/traffic"
)

// readyPollInterval paces readiness polling during navigation waits
const readyPollInterval = 100 * time.Millisecond

// visibilityScript runs with the node as `this` and mirrors what a user
// can see: styled visible and a non-empty box.
const visibilityScript = `function() {
	const style = window.getComputedStyle(this);
	if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') {
		return false;
	}
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

// chromePage drives the browser's tab
type chromePage struct {
	bc *chromeContext
}

// Navigate loads url and waits for the requested readiness state. The
// context's navigation timeout bounds the whole step; the session's
// referrer rides along on the first navigation only.
func (p *chromePage) Navigate(ctx context.Context, urlstr string, wait traffic.WaitPolicy) error {
	navCtx := ctx
	if p.bc.navTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, p.bc.navTimeout)
		defer cancel()
	}

	ref := p.bc.takeReferrer()
	err := p.bc.run(navCtx, "navigate", chromedp.ActionFunc(func(cctx context.Context) error {
		nav := page.Navigate(urlstr)
		if ref != "" {
			nav = nav.WithReferrer(ref)
		}
		_, _, errText, _, err := nav.Do(cctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigation to %s failed: %s", urlstr, errText)
		}
		return nil
	}))
	if err != nil {
		return p.mapNavError(ctx, navCtx, err)
	}
	p.bc.setURL(urlstr)
	if err := p.waitReady(navCtx, wait); err != nil {
		return p.mapNavError(ctx, navCtx, err)
	}
	return nil
}

// WaitReady waits for the current document to reach the given readiness
// state. Used standalone after click-triggered navigations.
func (p *chromePage) WaitReady(ctx context.Context, wait traffic.WaitPolicy) error {
	return p.waitReady(ctx, wait)
}

// waitReady polls document.readyState (and network quiet, for the
// networkidle policy). Evaluation errors are tolerated: mid-navigation
// the execution context briefly disappears.
func (p *chromePage) waitReady(ctx context.Context, wait traffic.WaitPolicy) error {
	// Give a just-initiated navigation a moment to swap documents so the
	// poll below does not observe the previous page's state.
	sleep(ctx, 50*time.Millisecond)
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return traffic.NewTransientError("wait ready", err)
			}
			return err
		}
		var state string
		err := p.bc.run(ctx, "read document state", chromedp.ActionFunc(func(cctx context.Context) error {
			res, exc, err := runtime.Evaluate("document.readyState").WithReturnByValue(true).Do(cctx)
			if err != nil {
				return err
			}
			if exc != nil {
				return exc
			}
			if res != nil && res.Value != nil {
				return json.Unmarshal(res.Value, &state)
			}
			return nil
		}))
		if err == nil && ready(state, wait) {
			if wait != traffic.WaitNetworkIdle || p.bc.networkQuiet() {
				return nil
			}
		}
		sleep(ctx, readyPollInterval)
	}
}

func ready(state string, wait traffic.WaitPolicy) bool {
	switch wait {
	case traffic.WaitLoad, traffic.WaitNetworkIdle:
		return state == "complete"
	default:
		return state == "interactive" || state == "complete"
	}
}

// mapNavError keeps caller cancellation as-is and converts a blown
// navigation deadline into a retryable failure.
func (p *chromePage) mapNavError(ctx, navCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return traffic.NewTransientError("navigate", fmt.Errorf("navigation timed out after %v", p.bc.navTimeout))
	}
	return err
}

// URL returns the main frame's URL as of the last navigation
func (p *chromePage) URL() string {
	return p.bc.url()
}

// Viewport returns the emulated viewport
func (p *chromePage) Viewport() fingerprint.Viewport {
	return p.bc.viewport
}

// Locate returns the first match for selector, or (nil, nil) when the
// page has none.
func (p *chromePage) Locate(ctx context.Context, selector string) (traffic.Element, error) {
	var id cdp.NodeID
	err := p.bc.run(ctx, "locate", chromedp.ActionFunc(func(cctx context.Context) error {
		doc, err := dom.GetDocument().Do(cctx)
		if err != nil {
			return err
		}
		id, err = dom.QuerySelector(doc.NodeID, selector).Do(cctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	return &chromeElement{bc: p.bc, id: id}, nil
}

// LocateAll returns every match for selector
func (p *chromePage) LocateAll(ctx context.Context, selector string) ([]traffic.Element, error) {
	var ids []cdp.NodeID
	err := p.bc.run(ctx, "locate all", chromedp.ActionFunc(func(cctx context.Context) error {
		doc, err := dom.GetDocument().Do(cctx)
		if err != nil {
			return err
		}
		ids, err = dom.QuerySelectorAll(doc.NodeID, selector).Do(cctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	els := make([]traffic.Element, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		els = append(els, &chromeElement{bc: p.bc, id: id})
	}
	return els, nil
}

// Evaluate runs script in page context and decodes the JSON result
func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.bc.run(ctx, "evaluate", chromedp.ActionFunc(func(cctx context.Context) error {
		res, exc, err := runtime.Evaluate(script).WithReturnByValue(true).Do(cctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || res.Value == nil {
			return nil
		}
		return json.Unmarshal(res.Value, out)
	}))
}

// MoveMouse dispatches a pointer move to viewport coordinates
func (p *chromePage) MoveMouse(ctx context.Context, x, y float64) error {
	return p.bc.run(ctx, "move mouse",
		input.DispatchMouseEvent(input.MouseMoved, x, y))
}

// ScrollBy dispatches a wheel event at the viewport center
func (p *chromePage) ScrollBy(ctx context.Context, dx, dy float64) error {
	cx := float64(p.bc.viewport.Width) / 2
	cy := float64(p.bc.viewport.Height) / 2
	return p.bc.run(ctx, "scroll",
		input.DispatchMouseEvent(input.MouseWheel, cx, cy).
			WithDeltaX(dx).
			WithDeltaY(dy))
}

// chromeElement is a handle on a DOM node. Node ids are only valid for
// the document they were located on; navigating invalidates them and
// subsequent operations fail as transient.
type chromeElement struct {
	bc *chromeContext
	id cdp.NodeID
}

// Visible reports whether the node is styled visible with a non-empty box
func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.bc.run(ctx, "check visibility", chromedp.ActionFunc(func(cctx context.Context) error {
		return callOnNode(cctx, e.id, visibilityScript, &visible)
	}))
	if err != nil {
		return false, err
	}
	return visible, nil
}

// Attribute returns the named attribute, empty when absent
func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	err := e.bc.run(ctx, "read attribute", chromedp.ActionFunc(func(cctx context.Context) error {
		attrs, err := dom.GetAttributes(e.id).Do(cctx)
		if err != nil {
			return err
		}
		for i := 0; i+1 < len(attrs); i += 2 {
			if attrs[i] == name {
				value = attrs[i+1]
				return nil
			}
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return value, nil
}

// Text returns the node's rendered text
func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.bc.run(ctx, "read text", chromedp.ActionFunc(func(cctx context.Context) error {
		return callOnNode(cctx, e.id, `function() { return this.innerText || this.textContent || ''; }`, &text)
	}))
	if err != nil {
		return "", err
	}
	return text, nil
}

// Click scrolls the node into view and dispatches a full press/release
// pair at its center.
func (e *chromeElement) Click(ctx context.Context) error {
	return e.bc.run(ctx, "click", chromedp.ActionFunc(func(cctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(e.id).Do(cctx); err != nil {
			return err
		}
		x, y, err := nodeCenter(cctx, e.id)
		if err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(cctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1).
			Do(cctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1).
			Do(cctx)
	}))
}

// Fill focuses the node, selects any existing content and types value
// over it.
func (e *chromeElement) Fill(ctx context.Context, value string) error {
	return e.bc.run(ctx, "fill", chromedp.ActionFunc(func(cctx context.Context) error {
		if err := dom.Focus().WithNodeID(e.id).Do(cctx); err != nil {
			return err
		}
		if err := callOnNode(cctx, e.id, `function() { if (typeof this.select === 'function') { this.select(); } }`, nil); err != nil {
			return err
		}
		return input.InsertText(value).Do(cctx)
	}))
}

// Hover scrolls the node into view and moves the pointer onto it
func (e *chromeElement) Hover(ctx context.Context) error {
	return e.bc.run(ctx, "hover", chromedp.ActionFunc(func(cctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(e.id).Do(cctx); err != nil {
			return err
		}
		x, y, err := nodeCenter(cctx, e.id)
		if err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(cctx)
	}))
}

// LocateAll queries descendants of this node
func (e *chromeElement) LocateAll(ctx context.Context, selector string) ([]traffic.Element, error) {
	var ids []cdp.NodeID
	err := e.bc.run(ctx, "locate descendants", chromedp.ActionFunc(func(cctx context.Context) error {
		var err error
		ids, err = dom.QuerySelectorAll(e.id, selector).Do(cctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	els := make([]traffic.Element, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		els = append(els, &chromeElement{bc: e.bc, id: id})
	}
	return els, nil
}

// nodeCenter computes the center of the node's first content quad
func nodeCenter(cctx context.Context, id cdp.NodeID) (float64, float64, error) {
	quads, err := dom.GetContentQuads().WithNodeID(id).Do(cctx)
	if err != nil {
		return 0, 0, err
	}
	if len(quads) == 0 || len(quads[0]) < 8 {
		return 0, 0, errors.New("node has no content quads")
	}
	q := quads[0]
	x := (q[0] + q[2] + q[4] + q[6]) / 4
	y := (q[1] + q[3] + q[5] + q[7]) / 4
	return x, y, nil
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var (
	_ traffic.Page    = (*chromePage)(nil)
	_ traffic.Element = (*chromeElement)(nil)
)
