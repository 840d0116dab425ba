package memdom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/jetsetgo/till-bridge/internal/page"
)

// Element wraps a node of a Document
type Element struct {
	doc  *Document
	node *html.Node
}

// Text returns the element's text content
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return strings.TrimSpace(textOf(e.node))
}

// SetText replaces the element's children with text
func (e *Element) SetText(text string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

// Attr returns an attribute value
func (e *Element) Attr(name string) string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, name)
}

// SetAttr sets an attribute; empty removes it
func (e *Element) SetAttr(name, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if value == "" {
		removeAttr(e.node, name)
	} else {
		setAttr(e.node, name, value)
	}
	return nil
}

// Visible reports whether the hidden attribute is absent
func (e *Element) Visible() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return !hasAttr(e.node, "hidden")
}

// SetVisible toggles the hidden attribute
func (e *Element) SetVisible(visible bool) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if visible {
		removeAttr(e.node, "hidden")
	} else {
		setAttr(e.node, "hidden", "")
	}
	return nil
}

// Enabled reports whether the disabled attribute is absent
func (e *Element) Enabled() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return !hasAttr(e.node, "disabled")
}

// SetEnabled toggles the disabled attribute
func (e *Element) SetEnabled(enabled bool) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if enabled {
		removeAttr(e.node, "disabled")
	} else {
		setAttr(e.node, "disabled", "")
	}
	return nil
}

// Click runs the routed handler, or records a submission when there is none.
// Hidden or disabled elements ignore clicks, like a browser would.
func (e *Element) Click() error {
	e.doc.mu.Lock()
	if hasAttr(e.node, "disabled") || hasAttr(e.node, "hidden") {
		e.doc.mu.Unlock()
		return nil
	}
	handler := e.doc.handlers[e.node]
	if handler == nil {
		e.doc.submissions = append(e.doc.submissions, strings.TrimSpace(textOf(e.node)))
	}
	e.doc.mu.Unlock()

	if handler != nil {
		handler()
	}
	return nil
}

// OnClick routes clicks to fn
func (e *Element) OnClick(fn func()) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.handlers[e.node] = fn
	return nil
}

// InsertAfter places el right after this element
func (e *Element) InsertAfter(el page.Element) error {
	other, ok := el.(*Element)
	if !ok || other.doc != e.doc {
		return fmt.Errorf("memdom: cannot insert foreign element %T", el)
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.node.Parent == nil {
		return ErrDetached
	}
	if other.node.Parent != nil {
		other.node.Parent.RemoveChild(other.node)
	}
	e.node.Parent.InsertBefore(other.node, e.node.NextSibling)
	return nil
}

// Remove detaches the element and drops its handler
func (e *Element) Remove() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	delete(e.doc.handlers, e.node)
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
	return nil
}

var _ page.Element = (*Element)(nil)
