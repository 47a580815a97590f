package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// interactive matches the elements exposed to the planner.
const interactive = `a[href], button, input, select, textarea, [role="button"], [role="checkbox"], [role="link"]`

// RodConfig configures the rod-backed browser.
type RodConfig struct {
	// ControlURL attaches to a running browser (DevTools websocket or http
	// endpoint), reusing its logged-in sessions. A local browser is launched
	// when empty.
	ControlURL  string
	Headless    bool
	SlowMotion  time.Duration
	Timeout     time.Duration
	MaxElements int
}

// DefaultRodConfig mirrors an interactive desktop session.
func DefaultRodConfig() RodConfig {
	return RodConfig{
		Headless:    false,
		SlowMotion:  250 * time.Millisecond,
		Timeout:     10 * time.Second,
		MaxElements: 150,
	}
}

// RodBrowser is a lazily connected browser shared by all registrations.
type RodBrowser struct {
	cfg RodConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewRodBrowser creates the browser handle. Nothing is started until the
// first page is requested.
func NewRodBrowser(cfg RodConfig) *RodBrowser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRodConfig().Timeout
	}
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = DefaultRodConfig().MaxElements
	}
	return &RodBrowser{cfg: cfg}
}

func (b *RodBrowser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(b.cfg.Headless).
			NoSandbox(true).
			Delete("use-mock-keychain")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	} else if !strings.HasPrefix(controlURL, "ws") {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve browser endpoint %s: %w", controlURL, err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).SlowMotion(b.cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	b.browser = browser
	return browser, nil
}

// NewPage opens a blank tab.
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &rodPage{page: page, cfg: b.cfg}, nil
}

// Close shuts down the browser and kills the launched process, if any.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
		b.launcher = nil
	}
	return err
}

type rodPage struct {
	page     *rod.Page
	cfg      RodConfig
	elements []*rod.Element
}

func (p *rodPage) bound(ctx context.Context) *rod.Page {
	return p.page.Context(ctx).Timeout(p.cfg.Timeout)
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.bound(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page did not load: %w", err)
	}
	_ = page.WaitIdle(2 * time.Second)
	p.elements = nil
	return nil
}

func (p *rodPage) Snapshot(ctx context.Context) (Snapshot, error) {
	page := p.bound(ctx)
	info, err := page.Info()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read page info: %w", err)
	}
	snap := Snapshot{URL: info.URL, Title: info.Title}

	if body, err := page.Element("body"); err == nil {
		if text, err := body.Text(); err == nil {
			snap.Text = truncate(strings.Join(strings.Fields(text), " "), 2000)
		}
	}

	found, err := page.Elements(interactive)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list elements: %w", err)
	}
	p.elements = p.elements[:0]
	for _, el := range found {
		if len(p.elements) >= p.cfg.MaxElements {
			break
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		p.elements = append(p.elements, el)
		snap.Elements = append(snap.Elements, describe(el, len(p.elements)-1))
	}
	return snap, nil
}

func describe(el *rod.Element, id int) Element {
	e := Element{ID: id}
	if tag, err := el.Eval(`() => this.tagName.toLowerCase()`); err == nil {
		e.Tag = tag.Value.String()
	}
	attr := func(name string) string {
		v, err := el.Attribute(name)
		if err != nil || v == nil {
			return ""
		}
		return *v
	}
	e.Type = attr("type")
	e.Required = attr("required") != "" || attr("aria-required") == "true"
	if checked, err := el.Property("checked"); err == nil {
		e.Checked = checked.Bool()
	}

	label, _ := el.Text()
	for _, alt := range []string{attr("aria-label"), attr("placeholder"), attr("name"), attr("value")} {
		if strings.TrimSpace(label) != "" {
			break
		}
		label = alt
	}
	e.Label = truncate(strings.Join(strings.Fields(label), " "), 120)
	return e
}

func (p *rodPage) element(ctx context.Context, id int) (*rod.Element, error) {
	if id < 0 || id >= len(p.elements) {
		return nil, fmt.Errorf("no element with id %d on the current snapshot", id)
	}
	return p.elements[id].Context(ctx).Timeout(p.cfg.Timeout), nil
}

func (p *rodPage) Click(ctx context.Context, id int) error {
	el, err := p.element(ctx, id)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	_ = p.bound(ctx).WaitIdle(2 * time.Second)
	return nil
}

func (p *rodPage) Fill(ctx context.Context, id int, text string) error {
	el, err := p.element(ctx, id)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (p *rodPage) Scroll(ctx context.Context, direction string) error {
	var js string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "down", "":
		js = `() => window.scrollBy(0, window.innerHeight)`
	case "up":
		js = `() => window.scrollBy(0, -window.innerHeight)`
	case "top":
		js = `() => window.scrollTo(0, 0)`
	case "bottom":
		js = `() => window.scrollTo(0, document.body.scrollHeight)`
	default:
		return fmt.Errorf("unknown scroll direction: %s", direction)
	}
	_, err := p.bound(ctx).Eval(js)
	return err
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
