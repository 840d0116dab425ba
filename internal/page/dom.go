// Package page intercepts POS workflow buttons so the cash drawer opens
// before the underlying transaction is submitted.
package page

// Element is a handle to one node of the page
type Element interface {
	Text() string
	SetText(text string) error
	Attr(name string) string
	// SetAttr sets an attribute; an empty value removes it.
	SetAttr(name, value string) error
	Visible() bool
	SetVisible(visible bool) error
	Enabled() bool
	SetEnabled(enabled bool) error
	// Click performs the element's own action, e.g. submitting its form.
	Click() error
	// OnClick routes clicks to fn instead of the element's own action.
	OnClick(fn func()) error
	InsertAfter(el Element) error
	Remove() error
}

// Document is the page capability the orchestrator works against
type Document interface {
	URL() string
	Find(selector string) ([]Element, error)
	// Value returns the value of the first form field matching selector, or "".
	Value(selector string) string
	CreateButton(text, class string) (Element, error)
	CreateStatus(text string) (Element, error)
	ShowNotice(level, message string) error
}
