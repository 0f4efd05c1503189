package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultSelectorTimeout   = 10 * time.Second
)

// Config controls the chromedp renderer.
type Config struct {
	Enabled           bool
	UserAgent         string
	NavigationTimeout time.Duration
	NoSandbox         bool
	ExecPath          string
}

// Chromedp renders pages in one headless Chrome tab.
type Chromedp struct {
	cfg         Config
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewFactory returns a Factory that launches a fresh browser per call, or
// Disabled when cfg.Enabled is false.
func NewFactory(cfg Config) Factory {
	if !cfg.Enabled {
		return Disabled
	}
	return func(ctx context.Context) (Renderer, error) {
		r, err := NewChromedp(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// NewChromedp starts Chrome and opens a warmed-up tab. Startup failures wrap ErrUnavailable.
func NewChromedp(ctx context.Context, cfg Config) (*Chromedp, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	r := &Chromedp{
		cfg:         cfg,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	// The first Run allocates the browser and must not carry a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: chromedp start: %v", ErrUnavailable, err)
	}
	if err := r.run(ctx, cfg.NavigationTimeout, r.setupAction(), chromedp.Navigate("about:blank")); err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: chromedp warmup: %v", ErrUnavailable, err)
	}
	return r, nil
}

func flags(cfg Config) map[string]any {
	out := map[string]any{
		"headless":                true,
		"disable-gpu":             true,
		"hide-scrollbars":         true,
		"enable-automation":       false,
		"disable-dev-shm-usage":   true,
		"disable-extensions":      true,
		"blink-settings":          "imagesEnabled=false",
		"disable-background-mode": true,
	}
	if cfg.NoSandbox {
		out["no-sandbox"] = true
	}
	return out
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range flags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

func (r *Chromedp) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// run executes actions in the tab bounded by timeout and by ctx.
func (r *Chromedp) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(r.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// Navigate implements Renderer.
func (r *Chromedp) Navigate(ctx context.Context, url string) error {
	return r.run(ctx, r.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// ElementText implements Renderer.
func (r *Chromedp) ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = defaultSelectorTimeout
	}
	var text string
	if err := r.run(ctx, timeout, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("selector %q: %w", selector, err)
	}
	return text, nil
}

// BodyText implements Renderer.
func (r *Chromedp) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := r.run(ctx, r.cfg.NavigationTimeout, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("body text: %w", err)
	}
	return text, nil
}

// Close cancels the tab and the allocator. Safe to call more than once.
func (r *Chromedp) Close() {
	if r == nil {
		return
	}
	if r.tabCancel != nil {
		r.tabCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
