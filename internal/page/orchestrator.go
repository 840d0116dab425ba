package page

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/drawer"
)

// boundAttr marks originals that already have a binding
const boundAttr = "data-tillbridge-bound"

// BindingState tracks a binding through a click
type BindingState int

const (
	Unbound BindingState = iota
	Bound
	Operating
	Resumed
	Reverted
)

func (s BindingState) String() string {
	switch s {
	case Bound:
		return "bound"
	case Operating:
		return "operating"
	case Resumed:
		return "resumed"
	case Reverted:
		return "reverted"
	default:
		return "unbound"
	}
}

// Binding ties an original workflow button to its drawer replacement
type Binding struct {
	ID          string
	Rule        PageRule
	Original    Element
	Replacement Element
	Status      Element

	OriginalText  string
	OriginalClass string
	OriginalType  string

	mu    sync.Mutex
	state BindingState
}

// State returns the binding's current state
func (b *Binding) State() BindingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Binding) setState(s BindingState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

// Drawer opens the cash drawer
type Drawer interface {
	OpenDrawer(ctx context.Context, req drawer.Request) (drawer.Receipt, error)
}

// Availability is the cached daemon reachability
type Availability interface {
	State() drawer.State
	Check(ctx context.Context) bool
	Reset()
}

// Notifier shows warnings and errors to the cashier
type Notifier interface {
	Warning(msg string)
	Error(msg string)
}

// Options controls orchestration behaviour
type Options struct {
	ResumeDelay             time.Duration
	AutoSubmit              bool
	VisibleRegisterSelector string
	HiddenRegisterSelector  string
	WriteoffSelector        string
	SessionRegisterID       string
	StatusText              string
}

// Orchestrator replaces matched workflow buttons with drawer buttons and
// always hands control back to the original button afterwards.
type Orchestrator struct {
	engine   *Engine
	doc      Document
	lock     *drawer.TransactionLock
	probe    Availability
	drawer   Drawer
	notifier Notifier
	opts     Options
	logger   *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	bindings []*Binding
	wg       sync.WaitGroup
}

// NewOrchestrator creates an orchestrator for one document
func NewOrchestrator(
	engine *Engine,
	doc Document,
	lock *drawer.TransactionLock,
	probe Availability,
	d Drawer,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.StatusText == "" {
		opts.StatusText = "Opening cash drawer..."
	}
	return &Orchestrator{
		engine:   engine,
		doc:      doc,
		lock:     lock,
		probe:    probe,
		drawer:   d,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		ctx:      context.Background(),
	}
}

// Start checks the daemon and binds buttons when it is reachable.
// It returns the number of bindings created.
func (o *Orchestrator) Start(ctx context.Context) (int, error) {
	if !o.engine.IsSupported(o.doc.URL()) {
		return 0, nil
	}
	if !o.probe.Check(ctx) {
		o.logger.Info("tray daemon not reachable, leaving page buttons untouched",
			zap.String("url", o.doc.URL()))
		return 0, nil
	}
	return o.Initialize(ctx)
}

// Reload rebinds the document after a page load. Availability learned on
// the previous page is discarded so a transient failure there does not keep
// the drawer disabled.
func (o *Orchestrator) Reload(ctx context.Context) (int, error) {
	o.Reset()
	o.probe.Reset()
	return o.Start(ctx)
}

// Initialize binds every button matched by the rules for the current page.
// Existing bindings are reset first.
func (o *Orchestrator) Initialize(ctx context.Context) (int, error) {
	o.Reset()

	url := o.doc.URL()
	rules := o.engine.Detect(url)

	o.mu.Lock()
	o.ctx = ctx
	o.mu.Unlock()

	created := 0
	for _, rule := range rules {
		if skip, why := o.skipRule(rule); skip {
			o.logger.Debug("page rule skipped",
				zap.String("rule", rule.Description),
				zap.String("reason", why))
			continue
		}

		elements, err := o.doc.Find(rule.Selector)
		if err != nil {
			return created, fmt.Errorf("find %q: %w", rule.Selector, err)
		}

		for _, el := range elements {
			if el.Attr(boundAttr) != "" {
				continue
			}
			b, err := o.bind(rule, el)
			if err != nil {
				o.logger.Warn("failed to bind button",
					zap.String("selector", rule.Selector),
					zap.Error(err))
				continue
			}

			o.mu.Lock()
			o.bindings = append(o.bindings, b)
			o.mu.Unlock()
			created++
		}
	}

	o.logger.Info("page buttons bound",
		zap.String("url", url),
		zap.Int("rules", len(rules)),
		zap.Int("bindings", created))
	return created, nil
}

func (o *Orchestrator) skipRule(rule PageRule) (bool, string) {
	if rule.SkipIfWriteoff && o.opts.WriteoffSelector != "" && isTruthy(o.doc.Value(o.opts.WriteoffSelector)) {
		return true, "write-off"
	}
	if rule.RequireSessionRegisterMatch {
		pageRegister := o.pageRegister()
		if pageRegister == "" || o.opts.SessionRegisterID == "" || pageRegister != o.opts.SessionRegisterID {
			return true, "register does not match session"
		}
	}
	return false, ""
}

func (o *Orchestrator) pageRegister() string {
	hint := o.registerHint()
	for _, v := range []string{hint.Visible, hint.Hidden} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (o *Orchestrator) registerHint() drawer.RegisterHint {
	var hint drawer.RegisterHint
	if o.opts.VisibleRegisterSelector != "" {
		hint.Visible = o.doc.Value(o.opts.VisibleRegisterSelector)
	}
	if o.opts.HiddenRegisterSelector != "" {
		hint.Hidden = o.doc.Value(o.opts.HiddenRegisterSelector)
	}
	return hint
}

func (o *Orchestrator) bind(rule PageRule, original Element) (*Binding, error) {
	b := &Binding{
		ID:            uuid.NewString(),
		Rule:          rule,
		Original:      original,
		OriginalText:  original.Text(),
		OriginalClass: original.Attr("class"),
		OriginalType:  original.Attr("type"),
	}

	label := rule.DrawerButtonText
	if label == "" {
		label = b.OriginalText
	}

	replacement, err := o.doc.CreateButton(label, b.OriginalClass)
	if err != nil {
		return nil, fmt.Errorf("create replacement: %w", err)
	}
	status, err := o.doc.CreateStatus(o.opts.StatusText)
	if err != nil {
		return nil, fmt.Errorf("create status: %w", err)
	}
	if err := original.InsertAfter(replacement); err != nil {
		return nil, fmt.Errorf("insert replacement: %w", err)
	}
	if err := replacement.InsertAfter(status); err != nil {
		_ = replacement.Remove()
		return nil, fmt.Errorf("insert status: %w", err)
	}
	b.Replacement = replacement
	b.Status = status

	if err := replacement.OnClick(func() { o.handleClick(b) }); err != nil {
		_ = status.Remove()
		_ = replacement.Remove()
		return nil, fmt.Errorf("wire click: %w", err)
	}

	if rule.OriginalButtonText != "" {
		_ = original.SetText(rule.OriginalButtonText)
	}
	_ = original.SetAttr(boundAttr, b.ID)
	if err := original.SetVisible(false); err != nil {
		o.revert(b)
		return nil, fmt.Errorf("hide original: %w", err)
	}

	b.setState(Bound)
	return b, nil
}

// handleClick takes the lock synchronously so a double click is dropped,
// then runs the drawer attempt in the background.
func (o *Orchestrator) handleClick(b *Binding) {
	if !o.lock.Lock() {
		o.logger.Debug("drawer click ignored, operation in progress", zap.String("binding", b.ID))
		return
	}

	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()

	b.setState(Operating)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("resuming workflow panicked",
					zap.String("binding", b.ID),
					zap.Any("panic", r))
				o.lock.ForceUnlock()
				o.notifier.Error("Cash drawer button failed - use the original button to continue")
			}
		}()
		o.operate(ctx, b)
		o.lock.Unlock()
	}()
}

// operate recovers panics from the drawer attempt; a panic while resuming
// reaches the recover in handleClick.
func (o *Orchestrator) operate(ctx context.Context, b *Binding) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("drawer click handler panicked", zap.Any("panic", r))
		}
		o.resume(b)
	}()

	if o.probe.State() == drawer.StateUnavailable {
		o.notifier.Warning("Cash drawer unavailable - transaction will continue")
		return
	}

	_ = b.Status.SetVisible(true)
	_ = b.Replacement.SetEnabled(false)

	_, err := o.drawer.OpenDrawer(ctx, drawer.Request{
		Register: o.registerHint(),
		PageURL:  o.doc.URL(),
	})
	if err != nil {
		o.logger.Info("continuing workflow without drawer",
			zap.String("binding", b.ID),
			zap.Error(err))
	}

	if o.opts.ResumeDelay > 0 {
		t := time.NewTimer(o.opts.ResumeDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
}

// resume reveals the original control first so it is usable even if
// cleaning up the replacement fails.
func (o *Orchestrator) resume(b *Binding) {
	if err := b.Original.SetVisible(true); err != nil {
		o.logger.Error("failed to reveal original button", zap.String("binding", b.ID), zap.Error(err))
	}
	if err := b.Original.SetEnabled(true); err != nil {
		o.logger.Error("failed to enable original button", zap.String("binding", b.ID), zap.Error(err))
	}
	_ = b.Replacement.SetVisible(false)
	_ = b.Replacement.SetEnabled(true)
	_ = b.Status.SetVisible(false)
	b.setState(Resumed)

	if o.opts.AutoSubmit {
		if err := b.Original.Click(); err != nil {
			o.logger.Warn("auto-submit failed, waiting for a second click",
				zap.String("binding", b.ID),
				zap.Error(err))
		}
	}
}

// Reset restores every original button and removes inserted nodes.
// It returns the number of bindings reverted.
func (o *Orchestrator) Reset() int {
	o.mu.Lock()
	bindings := o.bindings
	o.bindings = nil
	o.mu.Unlock()

	for _, b := range bindings {
		o.revert(b)
	}
	return len(bindings)
}

func (o *Orchestrator) revert(b *Binding) {
	if b.Status != nil {
		_ = b.Status.Remove()
	}
	if b.Replacement != nil {
		_ = b.Replacement.Remove()
	}
	_ = b.Original.SetText(b.OriginalText)
	_ = b.Original.SetAttr(boundAttr, "")
	_ = b.Original.SetVisible(true)
	_ = b.Original.SetEnabled(true)
	b.setState(Reverted)
}

// Bindings returns the active bindings
func (o *Orchestrator) Bindings() []*Binding {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Binding(nil), o.bindings...)
}

// Wait blocks until running click handlers have finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
