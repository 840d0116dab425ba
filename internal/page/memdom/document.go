// Package memdom is an in-memory page.Document backed by a parsed HTML tree.
// It is used by tests and by the CLI to dry-run page rules against saved pages.
package memdom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jetsetgo/till-bridge/internal/page"
)

// ErrDetached is returned when an element is not part of the tree
var ErrDetached = errors.New("element is not attached")

// Notice is a message shown on the page
type Notice struct {
	Level   string
	Message string
}

// Document is an HTML tree with click handlers and recorded submissions
type Document struct {
	mu          sync.Mutex
	url         string
	root        *html.Node
	handlers    map[*html.Node]func()
	submissions []string
	notices     []Notice
}

// Parse builds a document from HTML
func Parse(url string, r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		url:      url,
		root:     root,
		handlers: make(map[*html.Node]func()),
	}, nil
}

// MustParse is Parse for literals in tests
func MustParse(url, src string) *Document {
	d, err := Parse(url, strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return d
}

// URL returns the page address
func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Navigate changes the page address
func (d *Document) Navigate(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Find returns elements matching a CSS selector, in document order
func (d *Document) Find(selector string) ([]page.Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}

	d.mu.Lock()
	nodes := sel.MatchAll(d.root)
	d.mu.Unlock()

	out := make([]page.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{doc: d, node: n}
	}
	return out, nil
}

// Value returns the value of the first field matching selector
func (d *Document) Value(selector string) string {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return ""
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := sel.MatchFirst(d.root)
	if n == nil {
		return ""
	}
	if n.DataAtom == atom.Select {
		return selectedOption(n)
	}
	return attr(n, "value")
}

// CreateButton creates a detached button
func (d *Document) CreateButton(text, class string) (page.Element, error) {
	n := &html.Node{Type: html.ElementNode, Data: "button", DataAtom: atom.Button}
	setAttr(n, "type", "button")
	if class != "" {
		setAttr(n, "class", class)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return &Element{doc: d, node: n}, nil
}

// CreateStatus creates a detached, hidden status message
func (d *Document) CreateStatus(text string) (page.Element, error) {
	n := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span}
	setAttr(n, "class", "tillbridge-status")
	setAttr(n, "hidden", "")
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return &Element{doc: d, node: n}, nil
}

// ShowNotice records a page notice
func (d *Document) ShowNotice(level, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, Notice{Level: level, Message: message})
	return nil
}

// Notices returns the notices shown so far
func (d *Document) Notices() []Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notice(nil), d.notices...)
}

// Submissions returns the text of every element whose own action ran
func (d *Document) Submissions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.submissions...)
}

// HTML renders the current tree
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	_ = html.Render(&buf, d.root)
	return buf.String()
}

// Count returns how many elements match selector
func (d *Document) Count(selector string) int {
	els, err := d.Find(selector)
	if err != nil {
		return 0
	}
	return len(els)
}

var _ page.Document = (*Document)(nil)

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func selectedOption(n *html.Node) string {
	var first *html.Node
	var found *html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil && found == nil; ch = ch.NextSibling {
			if ch.DataAtom == atom.Option {
				if first == nil {
					first = ch
				}
				if hasAttr(ch, "selected") {
					found = ch
				}
			}
			walk(ch)
		}
	}
	walk(n)
	if found == nil {
		found = first
	}
	if found == nil {
		return ""
	}
	if hasAttr(found, "value") {
		return attr(found, "value")
	}
	return strings.TrimSpace(textOf(found))
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}
