package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
	"github.com/trafficsim/backend/internal/domain/traffic"
)

// networkQuietWindow is how long the wire must stay silent before a
// networkidle wait resolves.
const networkQuietWindow = 500 * time.Millisecond

// ChromeConfig contains configuration for the chromedp capability
type ChromeConfig struct {
	// ExecPath is the Chrome/Chromium binary (empty = chromedp's lookup)
	ExecPath string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// ChromeCapability provisions browsing contexts on dedicated Chrome
// instances via the DevTools protocol. Each Open launches its own
// browser so proxy, user agent and storage never leak across sessions.
type ChromeCapability struct {
	cfg    ChromeConfig
	logger *zap.Logger
}

// NewChromeCapability creates a chromedp-backed capability
func NewChromeCapability(cfg ChromeConfig) *ChromeCapability {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeCapability{cfg: cfg, logger: logger}
}

// Name identifies the engine for logs and run records
func (c *ChromeCapability) Name() string {
	return "chromedp"
}

// Open launches a browser and applies the session identity: user agent,
// viewport and touch metrics, timezone, media preferences, restored
// cookies and the document init script.
func (c *ChromeCapability) Open(ctx context.Context, opts traffic.ContextOptions) (traffic.BrowsingContext, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("lang", opts.Fingerprint.PrimaryLanguage()),
		chromedp.UserAgent(opts.Fingerprint.UserAgent),
		chromedp.WindowSize(opts.Fingerprint.Viewport.Width, opts.Fingerprint.Viewport.Height),
	)
	if c.cfg.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	if c.cfg.NoSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	bc := &chromeContext{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        c.logger,
		viewport:      opts.Fingerprint.Viewport,
		navTimeout:    opts.NavigationTimeout,
		referrer:      opts.Referrer,
	}
	bc.lastNetActivity.Store(time.Now().UnixNano())
	chromedp.ListenTarget(browserCtx, bc.onTargetEvent)

	if err := bc.bootstrap(ctx, opts); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = bc.Close(closeCtx)
		return nil, err
	}
	return bc, nil
}

// chromeContext is one dedicated browser instance. It implements
// traffic.BrowsingContext; pages and elements funnel every DevTools
// call through run so caller cancellation and transient classification
// are applied uniformly.
type chromeContext struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *zap.Logger
	viewport      fingerprint.Viewport
	navTimeout    time.Duration

	mu         sync.Mutex
	referrer   string
	currentURL string

	inflightMu sync.Mutex
	inflight   map[network.RequestID]struct{}

	lastNetActivity atomic.Int64 // unix nanos of the last network event

	closeOnce sync.Once
	closeErr  error
}

// bootstrap applies the identity before any page exists
func (bc *chromeContext) bootstrap(ctx context.Context, opts traffic.ContextOptions) error {
	fp := opts.Fingerprint
	snapshot, err := decodeStorageSnapshot(opts.StorageState)
	if err != nil {
		return traffic.NewTransientError("decode storage state", err)
	}

	actions := []chromedp.Action{
		network.Enable(),
		dom.Enable(),
		emulation.SetUserAgentOverride(fp.UserAgent).WithAcceptLanguage(fp.Locale),
		emulation.SetDeviceMetricsOverride(int64(fp.Viewport.Width), int64(fp.Viewport.Height), fp.DeviceScaleFactor, fp.IsMobile),
		emulation.SetTouchEmulationEnabled(fp.HasTouch),
		emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: fp.ColorScheme},
			{Name: "prefers-reduced-motion", Value: fp.ReducedMotion},
		}),
	}
	if fp.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(fp.Timezone))
	}
	if opts.Offline {
		actions = append(actions, network.EmulateNetworkConditions(true, 0, -1, -1))
	}
	if len(snapshot.Cookies) > 0 {
		actions = append(actions, storage.SetCookies(cookieParams(snapshot.Cookies)))
	}
	script := identityScript(fp, snapshot.Origins)
	actions = append(actions, chromedp.ActionFunc(func(cctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(cctx)
		return err
	}))

	return bc.run(ctx, "open browsing context", actions...)
}

// run executes DevTools actions on the browser, honoring the caller's
// context. Caller cancellation surfaces as the context error; every
// other failure is wrapped as transient, matching the session retry
// policy for automation-layer errors.
func (bc *chromeContext) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithCancel(bc.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return traffic.NewTransientError(op, err)
	}
	return nil
}

// onTargetEvent tracks in-flight requests for networkidle waits and the
// main frame URL for Page.URL.
func (bc *chromeContext) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		bc.inflightMu.Lock()
		if bc.inflight == nil {
			bc.inflight = make(map[network.RequestID]struct{})
		}
		bc.inflight[e.RequestID] = struct{}{}
		bc.inflightMu.Unlock()
		bc.lastNetActivity.Store(time.Now().UnixNano())
	case *network.EventLoadingFinished:
		bc.finishRequest(e.RequestID)
	case *network.EventLoadingFailed:
		bc.finishRequest(e.RequestID)
	case *network.EventRequestServedFromCache:
		bc.finishRequest(e.RequestID)
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			bc.mu.Lock()
			bc.currentURL = e.Frame.URL
			bc.mu.Unlock()
		}
	}
}

func (bc *chromeContext) finishRequest(id network.RequestID) {
	bc.inflightMu.Lock()
	delete(bc.inflight, id)
	bc.inflightMu.Unlock()
	bc.lastNetActivity.Store(time.Now().UnixNano())
}

// networkQuiet reports whether no request is in flight and the wire has
// been silent for at least the quiet window.
func (bc *chromeContext) networkQuiet() bool {
	bc.inflightMu.Lock()
	pending := len(bc.inflight)
	bc.inflightMu.Unlock()
	if pending > 0 {
		return false
	}
	last := time.Unix(0, bc.lastNetActivity.Load())
	return time.Since(last) >= networkQuietWindow
}

// takeReferrer consumes the configured referrer; only the session's
// first navigation carries it.
func (bc *chromeContext) takeReferrer() string {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	ref := bc.referrer
	bc.referrer = ""
	return ref
}

func (bc *chromeContext) setURL(u string) {
	bc.mu.Lock()
	bc.currentURL = u
	bc.mu.Unlock()
}

func (bc *chromeContext) url() string {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.currentURL
}

// NewPage returns the browser's tab. A dedicated browser per context
// means one page serves the whole session.
func (bc *chromeContext) NewPage(ctx context.Context) (traffic.Page, error) {
	// Make sure the browser process is up before handing out the page.
	if err := bc.run(ctx, "start browser"); err != nil {
		return nil, err
	}
	return &chromePage{bc: bc}, nil
}

// StorageState captures cookies plus the current origin's localStorage
// as a serialized snapshot for returning-visitor profiles.
func (bc *chromeContext) StorageState(ctx context.Context) ([]byte, error) {
	var snap storageSnapshot
	err := bc.run(ctx, "capture storage state", chromedp.ActionFunc(func(cctx context.Context) error {
		cookies, err := storage.GetCookies().Do(cctx)
		if err != nil {
			return err
		}
		snap.Cookies = cookies

		res, exc, err := runtime.Evaluate(localStorageDumpScript).WithReturnByValue(true).Do(cctx)
		if err != nil || exc != nil || res == nil || res.Value == nil {
			// localStorage is unavailable on opaque origins; cookies
			// alone still make a usable profile.
			return nil
		}
		var origin originStorage
		if err := json.Unmarshal(res.Value, &origin); err == nil && origin.Origin != "" && len(origin.Items) > 0 {
			snap.Origins = append(snap.Origins, origin)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return json.Marshal(&snap)
}

// Close shuts the browser down, first gracefully, then hard when the
// given context expires. Safe to call more than once.
func (bc *chromeContext) Close(ctx context.Context) error {
	bc.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = chromedp.Cancel(bc.browserCtx)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			bc.closeErr = fmt.Errorf("graceful browser shutdown interrupted: %w", ctx.Err())
		}
		bc.browserCancel()
		bc.allocCancel()
	})
	return bc.closeErr
}

// callOnNode resolves the node to a runtime object and invokes fn with
// the node as `this`, decoding a by-value result into out.
func callOnNode(cctx context.Context, id cdp.NodeID, fn string, out any) error {
	obj, err := dom.ResolveNode().WithNodeID(id).Do(cctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = runtime.ReleaseObject(obj.ObjectID).Do(cctx)
	}()
	res, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithReturnByValue(true).
		Do(cctx)
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
}

// Ensure ChromeCapability implements traffic.Capability
var _ traffic.Capability = (*ChromeCapability)(nil)
