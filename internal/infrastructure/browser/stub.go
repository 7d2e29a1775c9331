package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
	"github.com/trafficsim/backend/internal/domain/traffic"
)

// StubCapability serves an in-memory site without a real browser. It
// backs dry runs (browser.engine = "stub") and the behavior tests.
// Every Open hands out an isolated deep copy of the site, so concurrent
// sessions never share mutable state.
type StubCapability struct {
	site *StubSite

	mu       sync.Mutex
	opens    []traffic.ContextOptions
	contexts []*StubBrowsingContext
	failures []error
}

// NewStubCapability creates a stub over the given site. A nil site
// serves the built-in demo site.
func NewStubCapability(site *StubSite) *StubCapability {
	if site == nil {
		site = DefaultStubSite()
	}
	return &StubCapability{site: site}
}

// Name identifies the engine for logs and run records
func (c *StubCapability) Name() string {
	return "stub"
}

// FailOpens makes the next n Open calls fail with err
func (c *StubCapability) FailOpens(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.failures = append(c.failures, err)
	}
}

// Open clones the site into a fresh browsing context
func (c *StubCapability) Open(ctx context.Context, opts traffic.ContextOptions) (traffic.BrowsingContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.opens = append(c.opens, opts)
	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		c.mu.Unlock()
		return nil, err
	}
	bc := &StubBrowsingContext{
		docs:     c.site.clone(),
		fallback: c.site.fallbackPath,
		opts:     opts,
	}
	c.contexts = append(c.contexts, bc)
	c.mu.Unlock()
	return bc, nil
}

// OpenCount reports how many times Open was called, failures included
func (c *StubCapability) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.opens)
}

// OpenOptions returns the options of every Open call in order
func (c *StubCapability) OpenOptions() []traffic.ContextOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]traffic.ContextOptions, len(c.opens))
	copy(out, c.opens)
	return out
}

// Contexts returns every context handed out so far
func (c *StubCapability) Contexts() []*StubBrowsingContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*StubBrowsingContext, len(c.contexts))
	copy(out, c.contexts)
	return out
}

// StubSite is an immutable site description: documents keyed by path.
// Unknown paths resolve to the fallback page when one is set.
type StubSite struct {
	pages        map[string]*StubPage
	fallbackPath string
}

// NewStubSite creates an empty site
func NewStubSite() *StubSite {
	return &StubSite{pages: make(map[string]*StubPage)}
}

// Page adds a document under path
func (s *StubSite) Page(path string, p *StubPage) *StubSite {
	s.pages[path] = p
	return s
}

// Fallback routes unknown paths to the page registered under path
func (s *StubSite) Fallback(path string) *StubSite {
	s.fallbackPath = path
	return s
}

// clone deep-copies every document for one browsing context
func (s *StubSite) clone() map[string]*stubDoc {
	docs := make(map[string]*stubDoc, len(s.pages))
	for path, p := range s.pages {
		docs[path] = p.build(path)
	}
	return docs
}

// StubPage builds one document
type StubPage struct {
	title  string
	vitals map[string]float64
	nodes  []*stubNode
}

// NewStubPage creates a page with the given title
func NewStubPage(title string) *StubPage {
	return &StubPage{title: title}
}

// Link adds a visible same-document anchor
func (p *StubPage) Link(href, text string) *StubPage {
	p.nodes = append(p.nodes, &stubNode{
		tag:         "a",
		attrs:       map[string]string{"href": href},
		text:        text,
		visible:     true,
		clickTarget: href,
	})
	return p
}

// HiddenLink adds an anchor that never becomes visible
func (p *StubPage) HiddenLink(href, text string) *StubPage {
	p.Link(href, text)
	p.nodes[len(p.nodes)-1].visible = false
	return p
}

// Button adds a visible button navigating to target when clicked;
// an empty target keeps the page.
func (p *StubPage) Button(text, target string) *StubPage {
	p.nodes = append(p.nodes, &stubNode{
		tag:         "button",
		attrs:       map[string]string{},
		text:        text,
		visible:     true,
		clickTarget: target,
	})
	return p
}

// HiddenButton adds a button that never becomes visible
func (p *StubPage) HiddenButton(text, target string) *StubPage {
	p.Button(text, target)
	p.nodes[len(p.nodes)-1].visible = false
	return p
}

// Form adds a form subtree
func (p *StubPage) Form(f *StubForm) *StubPage {
	p.nodes = append(p.nodes, f.node)
	return p
}

// Vitals sets the performance snapshot the page reports, in ms
func (p *StubPage) Vitals(ttfb, fcp, domContentLoaded, load float64) *StubPage {
	p.vitals = map[string]float64{
		"ttfb_ms":               ttfb,
		"fcp_ms":                fcp,
		"dom_content_loaded_ms": domContentLoaded,
		"load_ms":               load,
	}
	return p
}

// build deep-copies the page description into a live document
func (p *StubPage) build(path string) *stubDoc {
	doc := &stubDoc{path: path, title: p.title, vitals: p.vitals}
	doc.nodes = cloneNodes(p.nodes)
	return doc
}

// StubForm builds a form node with input children
type StubForm struct {
	node *stubNode
}

// NewStubForm creates an empty visible form
func NewStubForm() *StubForm {
	return &StubForm{node: &stubNode{
		tag:     "form",
		attrs:   map[string]string{},
		visible: true,
	}}
}

// Attr sets a form attribute (id, name, class)
func (f *StubForm) Attr(name, value string) *StubForm {
	f.node.attrs[name] = value
	return f
}

// Field adds a visible input. An empty typ omits the type attribute.
func (f *StubForm) Field(name, typ string) *StubForm {
	attrs := map[string]string{"name": name}
	if typ != "" {
		attrs["type"] = typ
	}
	f.node.children = append(f.node.children, &stubNode{
		tag:     "input",
		attrs:   attrs,
		visible: true,
	})
	return f
}

// HiddenField adds an input that is never visible
func (f *StubForm) HiddenField(name, typ string) *StubForm {
	f.Field(name, typ)
	f.node.children[len(f.node.children)-1].visible = false
	return f
}

// TextArea adds a visible textarea
func (f *StubForm) TextArea(name string) *StubForm {
	f.node.children = append(f.node.children, &stubNode{
		tag:     "textarea",
		attrs:   map[string]string{"name": name},
		visible: true,
	})
	return f
}

// Submit adds a visible submit button navigating to target on click
func (f *StubForm) Submit(label, target string) *StubForm {
	f.node.children = append(f.node.children, &stubNode{
		tag:         "button",
		attrs:       map[string]string{"type": "submit"},
		text:        label,
		visible:     true,
		clickTarget: target,
	})
	return f
}

// stubDoc is one live document inside a browsing context
type stubDoc struct {
	path   string
	title  string
	vitals map[string]float64
	nodes  []*stubNode
}

// stubNode is a DOM-ish node: enough structure for selector matching
// and the behavior layer's interactions.
type stubNode struct {
	tag         string
	attrs       map[string]string
	text        string
	visible     bool
	clickTarget string
	children    []*stubNode
}

func cloneNodes(nodes []*stubNode) []*stubNode {
	out := make([]*stubNode, 0, len(nodes))
	for _, n := range nodes {
		attrs := make(map[string]string, len(n.attrs))
		for k, v := range n.attrs {
			attrs[k] = v
		}
		out = append(out, &stubNode{
			tag:         n.tag,
			attrs:       attrs,
			text:        n.text,
			visible:     n.visible,
			clickTarget: n.clickTarget,
			children:    cloneNodes(n.children),
		})
	}
	return out
}

// StubBrowsingContext is one session's in-memory browsing state
type StubBrowsingContext struct {
	docs     map[string]*stubDoc
	fallback string
	opts     traffic.ContextOptions

	mu          sync.Mutex
	base        *url.URL
	current     *stubDoc
	currentURL  string
	visited     []string
	clicked     []string
	fills       map[string]string
	mouseMoves  int
	scrolls     int
	captures    int
	closed      bool
}

// NewPage returns the context's single page handle
func (b *StubBrowsingContext) NewPage(ctx context.Context) (traffic.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &stubPage{bc: b}, nil
}

// StorageState snapshots the synthetic visit state in the same shape the
// chromedp capability produces.
func (b *StubBrowsingContext) StorageState(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captures++
	snap := storageSnapshot{}
	if b.base != nil {
		snap.Origins = []originStorage{{
			Origin: b.base.Scheme + "://" + b.base.Host,
			Items:  map[string]string{"visits": strconv.Itoa(len(b.visited))},
		}}
	}
	return json.Marshal(&snap)
}

// Close marks the context closed. Safe to call more than once.
func (b *StubBrowsingContext) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// VisitedPaths returns the navigation history
func (b *StubBrowsingContext) VisitedPaths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.visited))
	copy(out, b.visited)
	return out
}

// Clicked returns the labels of clicked elements in order
func (b *StubBrowsingContext) Clicked() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.clicked))
	copy(out, b.clicked)
	return out
}

// Fills returns filled values keyed by the input's name attribute
func (b *StubBrowsingContext) Fills() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.fills))
	for k, v := range b.fills {
		out[k] = v
	}
	return out
}

// Closed reports whether Close was called
func (b *StubBrowsingContext) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// StorageCaptures reports how many times StorageState was taken
func (b *StubBrowsingContext) StorageCaptures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captures
}

// MouseActivity reports pointer moves and scroll events
func (b *StubBrowsingContext) MouseActivity() (moves, scrolls int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mouseMoves, b.scrolls
}

// navigateTo resolves target against the base URL and swaps documents
func (b *StubBrowsingContext) navigateTo(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return traffic.NewTransientError("navigate", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.base == nil {
		if u.Host == "" {
			return traffic.NewTransientError("navigate", fmt.Errorf("no base URL for relative target %q", target))
		}
		b.base = &url.URL{Scheme: u.Scheme, Host: u.Host}
	}
	abs := b.base.ResolveReference(u)
	path := abs.Path
	if path == "" {
		path = "/"
	}
	doc, ok := b.docs[path]
	if !ok && b.fallback != "" {
		doc, ok = b.docs[b.fallback]
	}
	if !ok {
		return traffic.NewTransientError("navigate", fmt.Errorf("no document at %q", path))
	}
	b.current = doc
	b.currentURL = abs.String()
	b.visited = append(b.visited, path)
	return nil
}

func (b *StubBrowsingContext) currentDoc() *stubDoc {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// stubPage implements traffic.Page over the context's current document
type stubPage struct {
	bc *StubBrowsingContext
}

func (p *stubPage) Navigate(ctx context.Context, urlstr string, _ traffic.WaitPolicy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.bc.navigateTo(urlstr)
}

func (p *stubPage) WaitReady(ctx context.Context, _ traffic.WaitPolicy) error {
	return ctx.Err()
}

func (p *stubPage) URL() string {
	p.bc.mu.Lock()
	defer p.bc.mu.Unlock()
	return p.bc.currentURL
}

func (p *stubPage) Viewport() fingerprint.Viewport {
	vp := p.bc.opts.Fingerprint.Viewport
	if vp.Width == 0 || vp.Height == 0 {
		return fingerprint.Viewport{Width: 1280, Height: 720}
	}
	return vp
}

func (p *stubPage) Locate(ctx context.Context, selector string) (traffic.Element, error) {
	els, err := p.LocateAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, nil
	}
	return els[0], nil
}

func (p *stubPage) LocateAll(ctx context.Context, selector string) ([]traffic.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := p.bc.currentDoc()
	if doc == nil {
		return nil, traffic.NewTransientError("locate", fmt.Errorf("no document loaded"))
	}
	list, err := parseSelectorList(selector)
	if err != nil {
		return nil, traffic.NewTransientError("locate", err)
	}
	var els []traffic.Element
	walkNodes(doc.nodes, func(n *stubNode) {
		if matchesAny(list, n) {
			els = append(els, &stubElement{bc: p.bc, doc: doc, node: n})
		}
	})
	return els, nil
}

func (p *stubPage) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := p.bc.currentDoc()
	if doc == nil {
		return traffic.NewTransientError("evaluate", fmt.Errorf("no document loaded"))
	}
	var value any
	switch {
	case strings.Contains(script, "getEntriesByType('navigation')"):
		value = doc.vitals
	case strings.Contains(script, "document.readyState"):
		value = "complete"
	case strings.Contains(script, "document.title"):
		value = doc.title
	default:
		return nil
	}
	if out == nil || value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *stubPage) MoveMouse(ctx context.Context, _, _ float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.bc.mu.Lock()
	p.bc.mouseMoves++
	p.bc.mu.Unlock()
	return nil
}

func (p *stubPage) ScrollBy(ctx context.Context, _, _ float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.bc.mu.Lock()
	p.bc.scrolls++
	p.bc.mu.Unlock()
	return nil
}

// stubElement is a node handle bound to the document it was located on
type stubElement struct {
	bc   *StubBrowsingContext
	doc  *stubDoc
	node *stubNode
}

// stale reports whether the handle's document has been navigated away
func (e *stubElement) stale() error {
	if e.bc.currentDoc() != e.doc {
		return traffic.NewTransientError("element", fmt.Errorf("element handle is stale"))
	}
	return nil
}

func (e *stubElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := e.stale(); err != nil {
		return false, err
	}
	return e.node.visible, nil
}

func (e *stubElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.stale(); err != nil {
		return "", err
	}
	return e.node.attrs[name], nil
}

func (e *stubElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.stale(); err != nil {
		return "", err
	}
	return e.node.text, nil
}

func (e *stubElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.stale(); err != nil {
		return err
	}
	label := e.node.text
	if label == "" {
		label = e.node.attrs["value"]
	}
	e.bc.mu.Lock()
	e.bc.clicked = append(e.bc.clicked, label)
	e.bc.mu.Unlock()
	if e.node.clickTarget != "" {
		return e.bc.navigateTo(e.node.clickTarget)
	}
	return nil
}

func (e *stubElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.stale(); err != nil {
		return err
	}
	e.node.attrs["value"] = value
	e.bc.mu.Lock()
	if e.bc.fills == nil {
		e.bc.fills = make(map[string]string)
	}
	key := e.node.attrs["name"]
	if key == "" {
		key = e.node.tag
	}
	e.bc.fills[key] = value
	e.bc.mu.Unlock()
	return nil
}

func (e *stubElement) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.stale()
}

func (e *stubElement) LocateAll(ctx context.Context, selector string) ([]traffic.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.stale(); err != nil {
		return nil, err
	}
	list, err := parseSelectorList(selector)
	if err != nil {
		return nil, traffic.NewTransientError("locate", err)
	}
	var els []traffic.Element
	walkNodes(e.node.children, func(n *stubNode) {
		if matchesAny(list, n) {
			els = append(els, &stubElement{bc: e.bc, doc: e.doc, node: n})
		}
	})
	return els, nil
}

func walkNodes(nodes []*stubNode, visit func(*stubNode)) {
	for _, n := range nodes {
		visit(n)
		walkNodes(n.children, visit)
	}
}

// DefaultStubSite is a small marketing-style site rich enough for every
// built-in persona: scored links, download targets, forms to fill and
// plausible performance timings.
func DefaultStubSite() *StubSite {
	return NewStubSite().
		Page("/", NewStubPage("Home").
			Vitals(85, 420, 640, 1100).
			Link("/products", "Products and services").
			Link("/pricing", "Pricing and plans").
			Link("/about", "About us and the team").
			Link("/blog", "Blog and news").
			Link("/resources", "Resources library").
			Link("/careers", "Careers and hiring").
			Link("/contact", "Contact us").
			Button("Get started", "/signup")).
		Page("/products", NewStubPage("Products").
			Vitals(95, 510, 730, 1250).
			Link("/", "Home").
			Link("/pricing", "See pricing").
			Link("/contact", "Request a demo")).
		Page("/pricing", NewStubPage("Pricing").
			Vitals(90, 460, 700, 1180).
			Link("/", "Home").
			Link("/contact", "Contact sales").
			Link("/signup", "Signup for a free trial")).
		Page("/about", NewStubPage("About").
			Vitals(80, 400, 620, 1050).
			Link("/", "Home").
			Link("/careers", "Join the team").
			Link("/blog", "Company news")).
		Page("/blog", NewStubPage("Blog").
			Vitals(110, 560, 810, 1400).
			Link("/", "Home").
			Link("/resources", "Research reports and data").
			Link("/about", "About the company")).
		Page("/resources", NewStubPage("Resources").
			Vitals(100, 500, 760, 1300).
			Link("/", "Home").
			Link("/downloads/report", "Download the annual report").
			Button("Download whitepaper", "/downloads/report")).
		Page("/downloads/report", NewStubPage("Report").
			Vitals(70, 350, 540, 900).
			Link("/", "Back to home")).
		Page("/careers", NewStubPage("Careers").
			Vitals(95, 480, 720, 1220).
			Link("/", "Home").
			Link("/about", "About the company").
			Button("Apply now", "/apply")).
		Page("/apply", NewStubPage("Apply").
			Vitals(90, 450, 690, 1150).
			Link("/careers", "Back to careers").
			Form(NewStubForm().
				Attr("id", "application-form").
				Field("full_name", "text").
				Field("email", "email").
				Field("phone", "tel").
				TextArea("cover_letter").
				Submit("Submit application", "/thanks"))).
		Page("/contact", NewStubPage("Contact").
			Vitals(85, 430, 660, 1120).
			Link("/", "Home").
			Form(NewStubForm().
				Attr("id", "contact-form").
				Attr("name", "contact").
				Field("name", "text").
				Field("email", "email").
				TextArea("message").
				Submit("Send message", "/thanks"))).
		Page("/signup", NewStubPage("Signup").
			Vitals(80, 410, 630, 1080).
			Link("/", "Home").
			Form(NewStubForm().
				Attr("id", "signup-form").
				Field("email", "email").
				Field("company", "text").
				Submit("Create account", "/thanks"))).
		Page("/thanks", NewStubPage("Thanks").
			Vitals(60, 320, 500, 850).
			Link("/", "Back to home")).
		Fallback("/")
}

var (
	_ traffic.Capability      = (*StubCapability)(nil)
	_ traffic.BrowsingContext = (*StubBrowsingContext)(nil)
	_ traffic.Page            = (*stubPage)(nil)
	_ traffic.Element         = (*stubElement)(nil)
)
