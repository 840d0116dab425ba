package cdpdom

import (
	"fmt"

	dom "github.com/jetsetgo/till-bridge/internal/page"
)

// Element is a reference to a node held by the page helper
type Element struct {
	doc *Document
	id  string
}

// Text returns the node's text content, or "" if the page call fails
func (e *Element) Text() string {
	var s string
	_ = e.doc.call(&s, "text", e.id)
	return s
}

// SetText replaces the node's text content
func (e *Element) SetText(text string) error {
	return e.doc.call(nil, "setText", e.id, text)
}

// Attr returns an attribute value, or "" when it is absent
func (e *Element) Attr(name string) string {
	var s string
	_ = e.doc.call(&s, "attr", e.id, name)
	return s
}

// SetAttr sets an attribute; an empty value removes it
func (e *Element) SetAttr(name, value string) error {
	return e.doc.call(nil, "setAttr", e.id, name, value)
}

// Visible reports whether the node is neither hidden nor display:none
func (e *Element) Visible() bool {
	var v bool
	_ = e.doc.call(&v, "visible", e.id)
	return v
}

// SetVisible toggles both the hidden attribute and the inline display style
func (e *Element) SetVisible(visible bool) error {
	return e.doc.call(nil, "setVisible", e.id, visible)
}

// Enabled reports whether the node is not disabled
func (e *Element) Enabled() bool {
	var v bool
	_ = e.doc.call(&v, "enabled", e.id)
	return v
}

// SetEnabled toggles the disabled property
func (e *Element) SetEnabled(enabled bool) error {
	return e.doc.call(nil, "setEnabled", e.id, enabled)
}

// Click runs the node's own click in the page, submitting its form for
// submit buttons
func (e *Element) Click() error {
	return e.doc.call(nil, "click", e.id)
}

// OnClick routes clicks on the element to fn
func (e *Element) OnClick(fn func()) error {
	e.doc.mu.Lock()
	e.doc.handlers[e.id] = fn
	e.doc.mu.Unlock()
	return e.doc.call(nil, "route", e.id)
}

// InsertAfter moves el to just after this node. el must belong to the
// same document.
func (e *Element) InsertAfter(el dom.Element) error {
	other, ok := el.(*Element)
	if !ok || other.doc != e.doc {
		return fmt.Errorf("cdpdom: cannot insert foreign element %T", el)
	}
	return e.doc.call(nil, "insertAfter", e.id, other.id)
}

// Remove detaches the node and drops its click route
func (e *Element) Remove() error {
	e.doc.mu.Lock()
	delete(e.doc.handlers, e.id)
	e.doc.mu.Unlock()
	return e.doc.call(nil, "remove", e.id)
}

var _ dom.Element = (*Element)(nil)
