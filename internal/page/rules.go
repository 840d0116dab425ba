package page

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/jetsetgo/till-bridge/internal/config"
)

// ErrInvalidRule is returned for rules missing a URL pattern or selector
var ErrInvalidRule = errors.New("page rule requires url pattern and selector")

// PageRule binds one button on one kind of page to the drawer
type PageRule struct {
	URLPattern         string `json:"url_pattern"`
	Regexp             bool   `json:"regexp,omitempty"`
	Selector           string `json:"selector"`
	DrawerButtonText   string `json:"drawer_button_text"`
	OriginalButtonText string `json:"original_button_text"`
	Description        string `json:"description,omitempty"`

	// RequireSessionRegisterMatch skips the rule unless the page's register
	// is the register of the current till session.
	RequireSessionRegisterMatch bool `json:"require_session_register_match,omitempty"`
	// SkipIfWriteoff skips the rule when the page is in write-off mode.
	SkipIfWriteoff bool `json:"skip_if_writeoff,omitempty"`

	re *regexp.Regexp
}

// Matches reports whether the rule applies to url
func (r PageRule) Matches(url string) bool {
	if r.re != nil {
		return r.re.MatchString(url)
	}
	return strings.Contains(url, r.URLPattern)
}

func (r *PageRule) compile() error {
	if strings.TrimSpace(r.URLPattern) == "" || strings.TrimSpace(r.Selector) == "" {
		return ErrInvalidRule
	}
	r.re = nil
	if r.Regexp {
		re, err := regexp.Compile(r.URLPattern)
		if err != nil {
			return fmt.Errorf("page rule %q: %w", r.URLPattern, err)
		}
		r.re = re
	}
	return nil
}

// RuleFromConfig converts a configured rule
func RuleFromConfig(rc config.RuleConfig) PageRule {
	return PageRule{
		URLPattern:                  rc.URLPattern,
		Regexp:                      rc.Regexp,
		Selector:                    rc.Selector,
		DrawerButtonText:            rc.DrawerButtonText,
		OriginalButtonText:          rc.OriginalButtonText,
		Description:                 rc.Description,
		RequireSessionRegisterMatch: rc.RequireSessionRegisterMatch,
		SkipIfWriteoff:              rc.SkipIfWriteoff,
	}
}

// Engine holds the page rule table
type Engine struct {
	mu    sync.RWMutex
	rules []PageRule
}

// NewEngine creates an engine from rules, in order
func NewEngine(rules ...PageRule) (*Engine, error) {
	e := &Engine{}
	for _, r := range rules {
		if err := e.Add(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// NewEngineFromConfig builds the default table plus configured rules
func NewEngineFromConfig(cfg config.PageConfig) (*Engine, error) {
	var rules []PageRule
	if !cfg.DisableDefaultRules {
		rules = DefaultRules()
	}
	for _, rc := range cfg.Rules {
		rules = append(rules, RuleFromConfig(rc))
	}
	return NewEngine(rules...)
}

// Add appends a rule
func (e *Engine) Add(rule PageRule) error {
	if err := rule.compile(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	return nil
}

// Remove deletes rules with the given pattern and selector.
// An empty selector removes every rule for the pattern.
func (e *Engine) Remove(urlPattern, selector string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := lo.Reject(e.rules, func(r PageRule, _ int) bool {
		return r.URLPattern == urlPattern && (selector == "" || r.Selector == selector)
	})
	removed := len(kept) != len(e.rules)
	e.rules = kept
	return removed
}

// Detect returns every rule matching url, in table order
func (e *Engine) Detect(url string) []PageRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return lo.Filter(e.rules, func(r PageRule, _ int) bool {
		return r.Matches(url)
	})
}

// IsSupported reports whether any rule matches url
func (e *Engine) IsSupported(url string) bool {
	return len(e.Detect(url)) > 0
}

// Rules returns a snapshot of the table
func (e *Engine) Rules() []PageRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]PageRule(nil), e.rules...)
}
