// Package cdpdom drives the POS page in the kiosk browser over the Chrome
// DevTools Protocol.
package cdpdom

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	dom "github.com/jetsetgo/till-bridge/internal/page"
)

//go:embed helper.js
var helperJS string

const bindingName = "tillbridgeClick"

// ErrNoTarget is returned when no browser tab matches
var ErrNoTarget = errors.New("no matching browser tab")

// Options controls how the document attaches to the browser
type Options struct {
	// CDPURL is the DevTools websocket or http endpoint of the browser
	CDPURL string
	// URLContains picks the first page tab whose URL contains it
	URLContains string
	// CallTimeout bounds every evaluation in the page
	CallTimeout time.Duration
}

// Document is a page.Document backed by a live browser tab
type Document struct {
	ctx         context.Context
	allocCancel context.CancelFunc
	cancels     []context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	url      string
	handlers map[string]func()
	onLoad   []func()
}

// Attach connects to a running browser and takes over one of its tabs
func Attach(ctx context.Context, opts Options, logger *zap.Logger) (*Document, error) {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, opts.CDPURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// the first Run opens a blank tab of our own
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		allocCancel()
		return nil, fmt.Errorf("list browser tabs: %w", err)
	}
	c := chromedp.FromContext(browserCtx)
	own := c.Target.TargetID

	info := pickTarget(targets, opts.URLContains, own)
	if info == nil {
		allocCancel()
		return nil, fmt.Errorf("%w: %q", ErrNoTarget, opts.URLContains)
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))

	if err := target.CloseTarget(own).Do(cdp.WithExecutor(ctx, c.Browser)); err != nil {
		logger.Debug("failed to close helper tab", zap.Error(err))
	}

	d := &Document{
		ctx:         tabCtx,
		allocCancel: allocCancel,
		cancels:     []context.CancelFunc{tabCancel, browserCancel},
		timeout:     opts.CallTimeout,
		logger:      logger,
		url:         info.URL,
		handlers:    make(map[string]func()),
	}

	chromedp.ListenTarget(tabCtx, d.handleEvent)

	if err := chromedp.Run(tabCtx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(helperJS).Do(ctx)
			return err
		}),
		chromedp.Evaluate(helperJS, nil),
	); err != nil {
		allocCancel()
		return nil, fmt.Errorf("inject page helper: %w", err)
	}

	logger.Info("attached to browser tab",
		zap.String("target", string(info.TargetID)),
		zap.String("url", info.URL))
	return d, nil
}

func pickTarget(targets []*target.Info, urlContains string, skip target.ID) *target.Info {
	for _, t := range targets {
		if t.Type != "page" || t.TargetID == skip {
			continue
		}
		if urlContains == "" || strings.Contains(t.URL, urlContains) {
			return t
		}
	}
	return nil
}

// Close drops the browser connection and leaves the tab open
func (d *Document) Close() {
	d.allocCancel()
}

// Done is closed when the browser connection ends
func (d *Document) Done() <-chan struct{} {
	return d.ctx.Done()
}

// OnLoad registers fn to run after every page load in the tab
func (d *Document) OnLoad(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLoad = append(d.onLoad, fn)
}

func (d *Document) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != bindingName {
			return
		}
		d.mu.Lock()
		fn := d.handlers[e.Payload]
		d.mu.Unlock()
		if fn != nil {
			// event callbacks must not block the CDP reader
			go fn()
		}
	case *page.EventFrameNavigated:
		if e.Frame.ParentID == "" {
			d.mu.Lock()
			d.url = e.Frame.URL
			d.handlers = make(map[string]func())
			d.mu.Unlock()
		}
	case *page.EventLoadEventFired:
		d.mu.Lock()
		fns := append([]func(){}, d.onLoad...)
		d.mu.Unlock()
		for _, fn := range fns {
			go fn()
		}
	}
}

// call runs a helper function in the page and decodes its result into out
func (d *Document) call(out interface{}, method string, args ...interface{}) error {
	payload, err := json.Marshal(append([]interface{}{method}, args...))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	if out == nil {
		var ignored interface{}
		out = &ignored
	}
	expr := "window.__tillbridge.call(" + string(payload) + ")"
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("page %s: %w", method, err)
	}
	return nil
}

// URL returns the tab's current address
func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Find returns elements matching a CSS selector
func (d *Document) Find(selector string) ([]dom.Element, error) {
	var ids []string
	if err := d.call(&ids, "find", selector); err != nil {
		return nil, err
	}
	out := make([]dom.Element, len(ids))
	for i, id := range ids {
		out[i] = &Element{doc: d, id: id}
	}
	return out, nil
}

// Value returns the value of the first field matching selector
func (d *Document) Value(selector string) string {
	var v string
	if err := d.call(&v, "value", selector); err != nil {
		d.logger.Debug("read field failed", zap.String("selector", selector), zap.Error(err))
		return ""
	}
	return v
}

// CreateButton creates a detached button
func (d *Document) CreateButton(text, class string) (dom.Element, error) {
	var id string
	if err := d.call(&id, "createButton", text, class); err != nil {
		return nil, err
	}
	return &Element{doc: d, id: id}, nil
}

// CreateStatus creates a detached, hidden status message
func (d *Document) CreateStatus(text string) (dom.Element, error) {
	var id string
	if err := d.call(&id, "createStatus", text); err != nil {
		return nil, err
	}
	return &Element{doc: d, id: id}, nil
}

// ShowNotice shows a toast on the page
func (d *Document) ShowNotice(level, message string) error {
	return d.call(nil, "notice", level, message)
}

var _ dom.Document = (*Document)(nil)
