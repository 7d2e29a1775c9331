package traffic

import (
	"context"
	"time"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
)

// WaitPolicy names the readiness state a navigation waits for
type WaitPolicy string

const (
	WaitDOMContentLoaded WaitPolicy = "domcontentloaded"
	WaitLoad             WaitPolicy = "load"
	WaitNetworkIdle      WaitPolicy = "networkidle"
)

// ContextOptions configures one isolated browsing context. StorageState
// carries a serialized cookie/storage snapshot for returning visitors;
// nil means a fresh identity.
type ContextOptions struct {
	Fingerprint       fingerprint.Fingerprint
	Proxy             string
	Referrer          string
	StorageState      []byte
	Offline           bool
	Headless          bool
	NavigationTimeout time.Duration
}

// Capability provisions browsing contexts. Implementations live in the
// infrastructure layer; the orchestrator opens one context per session
// attempt and never reuses a context across attempts.
type Capability interface {
	// Name identifies the engine for logs and run records
	Name() string
	// Open launches an isolated context configured with the given
	// fingerprint, proxy, referrer and storage state.
	Open(ctx context.Context, opts ContextOptions) (BrowsingContext, error)
}

// BrowsingContext is one isolated cookie/storage universe. Close releases
// every resource the context holds and is safe to call more than once.
type BrowsingContext interface {
	NewPage(ctx context.Context) (Page, error)
	// StorageState serializes cookies and local storage for persistence
	// into a visitor profile.
	StorageState(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// Page drives a single tab
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitPolicy) error
	WaitReady(ctx context.Context, wait WaitPolicy) error
	URL() string
	Viewport() fingerprint.Viewport
	// Locate returns the first element matching the selector, or
	// (nil, nil) when nothing matches.
	Locate(ctx context.Context, selector string) (Element, error)
	LocateAll(ctx context.Context, selector string) ([]Element, error)
	// Evaluate runs the script in page context and decodes the JSON
	// result into out. A nil out discards the result.
	Evaluate(ctx context.Context, script string, out any) error
	MoveMouse(ctx context.Context, x, y float64) error
	ScrollBy(ctx context.Context, dx, dy float64) error
}

// Element is a handle on a located DOM node
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Attribute(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Hover(ctx context.Context) error
	// LocateAll queries descendants of this element
	LocateAll(ctx context.Context, selector string) ([]Element, error)
}
