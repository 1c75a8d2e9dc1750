// Package cdpsurface drives chart panes rendered by lightweight-charts in a
// Chromium tab. Commands go over a raw CDP websocket; user input comes back
// through a Runtime binding.
package cdpsurface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/tv_annotator/internal/errcode"
)

// Config configures the browser connection.
type Config struct {
	// CDPURL is the browser's remote debugging base, e.g. http://127.0.0.1:9220.
	CDPURL string
	// PageURL is opened in a new tab when no tab matches TabFilter.
	PageURL      string
	TabFilter    string
	EvalTimeout  time.Duration
	ReadyTimeout time.Duration
}

// PaneSpec describes one pane to create on the page.
type PaneSpec struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Browser owns the CDP session to the chart tab and its panes.
type Browser struct {
	cfg Config

	mu        sync.Mutex
	cdp       *rawCDP
	sessionID string
	targetID  target.ID
	unbind    func()
	tabCancel context.CancelFunc

	panes map[string]*Pane
	order []string
}

// New creates the panes described by specs. They are usable as surfaces
// right away; page calls fail with CDP_UNAVAILABLE until Connect succeeds.
func New(cfg Config, specs []PaneSpec) (*Browser, error) {
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 5 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if len(specs) == 0 {
		return nil, errcode.New(errcode.Validation, "at least one pane is required", nil)
	}
	cfg.TabFilter = strings.ToLower(strings.TrimSpace(cfg.TabFilter))
	b := &Browser{cfg: cfg, panes: make(map[string]*Pane)}
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, errcode.New(errcode.Validation, "pane id is required", nil)
		}
		if _, dup := b.panes[spec.ID]; dup {
			return nil, errcode.New(errcode.Validation, fmt.Sprintf("duplicate pane %q", spec.ID), nil)
		}
		b.panes[spec.ID] = newPane(b, spec)
		b.order = append(b.order, spec.ID)
	}
	return b, nil
}

// Connect attaches to the chart tab, opening it if needed, creates the
// panes on the page and pushes any primary data loaded so far.
func (b *Browser) Connect(ctx context.Context) error {
	if b.cfg.CDPURL == "" {
		return errcode.New(errcode.CDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdpsurface connect start", "cdp_url", b.cfg.CDPURL)
	cdp := newRawCDP(b.cfg.CDPURL)
	if err := cdp.connect(ctx); err != nil {
		return errcode.New(errcode.CDPUnavailable, "connect to CDP failed", err)
	}

	targetID, err := b.findTarget(ctx, cdp)
	if err != nil {
		cdp.close()
		return err
	}
	sessionID, err := cdp.attachToTarget(ctx, targetID)
	if err != nil {
		cdp.close()
		b.closeTab()
		return errcode.New(errcode.CDPUnavailable, "attach to target failed", err)
	}

	b.mu.Lock()
	b.cdp = cdp
	b.sessionID = sessionID
	b.targetID = targetID
	b.unbind = cdp.registerEventHandler("Runtime.bindingCalled", b.handleBinding)
	b.mu.Unlock()

	if err := cdp.enableRuntime(ctx, sessionID); err != nil {
		b.Close()
		return errcode.New(errcode.CDPUnavailable, "Runtime.enable failed", err)
	}
	if err := cdp.addBinding(ctx, sessionID, BindingName); err != nil {
		b.Close()
		return errcode.New(errcode.CDPUnavailable, "Runtime.addBinding failed", err)
	}
	if err := b.waitLoaded(ctx); err != nil {
		b.Close()
		return err
	}

	panes := b.Panes()
	specs := make([]PaneSpec, 0, len(panes))
	for _, p := range panes {
		specs = append(specs, p.spec)
	}
	var created []string
	if err := b.eval(ctx, jsCall("init", specs), &created); err != nil {
		b.Close()
		return err
	}
	for _, p := range panes {
		if data := p.PrimaryData(); len(data) > 0 {
			if err := b.eval(ctx, jsCall("setData", p.spec.ID, 0, data), nil); err != nil {
				slog.Warn("cdpsurface push primary data failed", "pane", p.spec.ID, "error", err)
			}
		}
	}
	slog.Info("cdpsurface connect ok", "target_id", targetID, "panes", created)
	return nil
}

// findTarget returns the first page tab whose URL contains the tab filter,
// opening PageURL when none does.
func (b *Browser) findTarget(ctx context.Context, cdp *rawCDP) (target.ID, error) {
	targets, err := cdp.listTargets(ctx)
	if err != nil {
		return "", errcode.New(errcode.CDPUnavailable, "list targets failed", err)
	}
	for _, t := range targets {
		if matchesTab(t, b.cfg.TabFilter) {
			slog.Debug("cdpsurface reusing tab", "target_id", t.TargetID, "url", t.URL)
			return t.TargetID, nil
		}
	}
	if b.cfg.PageURL == "" {
		return "", errcode.New(errcode.CDPUnavailable, fmt.Sprintf("no tab matches %q and no page URL configured", b.cfg.TabFilter), nil)
	}
	return b.openTab(ctx)
}

func matchesTab(t *target.Info, filter string) bool {
	if t == nil || t.Type != "page" {
		return false
	}
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.URL), filter)
}

// openTab opens PageURL in a new tab. The tab lives until Close.
func (b *Browser) openTab(ctx context.Context) (target.ID, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), b.cfg.CDPURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run binds the new tab to tabCtx, so it must not get a
	// derived deadline; time it out from here instead.
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(tabCtx, chromedp.Navigate(b.cfg.PageURL)) }()
	select {
	case err := <-errCh:
		if err != nil {
			cancel()
			return "", errcode.New(errcode.CDPUnavailable, "open chart page failed", err)
		}
	case <-time.After(b.cfg.ReadyTimeout):
		cancel()
		return "", errcode.New(errcode.CDPUnavailable, "open chart page timed out", nil)
	case <-ctx.Done():
		cancel()
		return "", ctx.Err()
	}
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		cancel()
		return "", errcode.New(errcode.CDPUnavailable, "open chart page: no target", nil)
	}

	b.mu.Lock()
	b.tabCancel = cancel
	b.mu.Unlock()
	slog.Info("cdpsurface opened chart tab", "url", b.cfg.PageURL, "target_id", c.Target.TargetID)
	return c.Target.TargetID, nil
}

func (b *Browser) waitLoaded(ctx context.Context) error {
	deadline := time.Now().Add(b.cfg.ReadyTimeout)
	probe := wrapJSEval(`return JSON.stringify({ok:true,data:!!(window.__annotator && window.__annotator.loaded && window.LightweightCharts)});`)
	for {
		var loaded bool
		err := b.eval(ctx, probe, &loaded)
		if err == nil && loaded {
			return nil
		}
		if time.Now().After(deadline) {
			if err == nil {
				err = errors.New("page not loaded")
			}
			return errcode.New(errcode.APIUnavailable, "chart page did not become ready", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// eval runs an envelope-returning expression on the chart tab.
func (b *Browser) eval(ctx context.Context, js string, out any) error {
	b.mu.Lock()
	cdp, sessionID := b.cdp, b.sessionID
	b.mu.Unlock()
	if cdp == nil {
		return errcode.New(errcode.CDPUnavailable, "CDP client not connected", nil)
	}

	evalCtx, cancel := context.WithTimeout(ctx, b.cfg.EvalTimeout)
	defer cancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return errcode.New(errcode.EvalTimeout, "evaluation timed out", err)
		}
		return errcode.New(errcode.EvalFailure, "evaluation failed", err)
	}
	return decodeEnvelope(raw, out)
}

// call evaluates with the configured timeout and no caller context; pane
// methods use it because the surface contract carries no context.
func (b *Browser) call(out any, method string, args ...any) error {
	return b.eval(context.Background(), jsCall(method, args...), out)
}

func (b *Browser) handleBinding(sessionID string, params json.RawMessage) {
	b.mu.Lock()
	own := b.sessionID
	b.mu.Unlock()
	if sessionID != own {
		return
	}
	var ev runtime.EventBindingCalled
	if err := json.Unmarshal(params, &ev); err != nil || ev.Name != BindingName {
		return
	}
	b.dispatchPayload(ev.Payload)
}

func (b *Browser) dispatchPayload(payload string) {
	var ev pageEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Debug("cdpsurface bad binding payload", "error", err)
		return
	}
	p, ok := b.Pane(ev.Pane)
	if !ok {
		slog.Debug("cdpsurface event for unknown pane", "pane", ev.Pane, "type", ev.Type)
		return
	}
	p.dispatch(ev)
}

// Panes returns the panes in creation order.
func (b *Browser) Panes() []*Pane {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Pane, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.panes[id])
	}
	return out
}

func (b *Browser) Pane(id string) (*Pane, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.panes[id]
	return p, ok
}

// Done is closed when the CDP connection drops.
func (b *Browser) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cdp == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return b.cdp.done()
}

// Close detaches from the tab and closes the connection. A tab opened by
// Connect is closed too.
func (b *Browser) Close() error {
	b.mu.Lock()
	cdp, sessionID, unbind := b.cdp, b.sessionID, b.unbind
	b.cdp, b.sessionID, b.unbind = nil, "", nil
	b.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	if cdp != nil {
		if sessionID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = cdp.detachFromTarget(ctx, sessionID)
			cancel()
		}
		cdp.close()
	}
	b.closeTab()
	return nil
}

func (b *Browser) closeTab() {
	b.mu.Lock()
	cancel := b.tabCancel
	b.tabCancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
