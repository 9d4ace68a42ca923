// Package dom wraps golang.org/x/net/html with the small set of lookups and
// mutations the manual search needs: selector queries, id and attribute
// lookups, flattened text, class toggling and fragment replacement.
//
// Lookups that find nothing return nil. Only malformed selectors are errors.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Selector is a compiled CSS selector.
type Selector = cascadia.Selector

// Parse parses a complete HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// ParseString parses a complete HTML document from a string.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Compile compiles a CSS selector group such as ".procedure-item, .news-item".
func Compile(selector string) (Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel, nil
}

// MustCompile is like Compile but panics on malformed selectors.
// Use it for package-level defaults only.
func MustCompile(selector string) Selector {
	return cascadia.MustCompile(selector)
}

// QueryAll returns the descendants of n matching sel, in document order.
// n itself is never included.
func QueryAll(n *html.Node, sel Selector) []*html.Node {
	if n == nil || sel == nil {
		return nil
	}
	return cascadia.QueryAll(n, sel)
}

// Query returns the first descendant of n matching sel, or nil.
func Query(n *html.Node, sel Selector) *html.Node {
	if n == nil || sel == nil {
		return nil
	}
	return cascadia.Query(n, sel)
}

// Matches reports whether n is an element matching sel.
func Matches(n *html.Node, sel Selector) bool {
	return n != nil && sel != nil && n.Type == html.ElementNode && sel.Match(n)
}

// Closest returns n or its nearest ancestor matching sel, or nil.
func Closest(n *html.Node, sel Selector) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if Matches(cur, sel) {
			return cur
		}
	}
	return nil
}

// ByID returns the first element under root whose id equals id.
func ByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return ByAttr(root, "id", id)
}

// ByAttr returns the first element under root (root included) carrying
// attribute key with exactly value.
func ByAttr(root *html.Node, key, value string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode {
			if v, ok := Attr(n, key); ok && v == value {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the children of the visited node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// Text returns the concatenated text content of n, like DOM textContent.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// CollapseSpace collapses runs of whitespace into single spaces and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the value of attribute key or fallback when it is absent.
func AttrOr(n *html.Node, key, fallback string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return fallback
}

// SetAttr sets attribute key on n, replacing an existing value.
func SetAttr(n *html.Node, key, value string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// ID returns the id attribute of n.
func ID(n *html.Node) string {
	return AttrOr(n, "id", "")
}

// HasClass reports whether n carries class name.
func HasClass(n *html.Node, name string) bool {
	for _, c := range strings.Fields(AttrOr(n, "class", "")) {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass adds class name to n when missing.
func AddClass(n *html.Node, name string) {
	if n == nil || HasClass(n, name) {
		return
	}
	classes := strings.Fields(AttrOr(n, "class", ""))
	SetAttr(n, "class", strings.Join(append(classes, name), " "))
}

// RemoveClass removes class name from n.
func RemoveClass(n *html.Node, name string) {
	if n == nil || !HasClass(n, name) {
		return
	}
	var kept []string
	for _, c := range strings.Fields(AttrOr(n, "class", "")) {
		if c != name {
			kept = append(kept, c)
		}
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// IsHeading reports whether n is an h1-h6 element.
func IsHeading(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// NewElement creates a detached element with the given attributes as
// key/value pairs.
func NewElement(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// NewText creates a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// SetInnerHTML replaces the children of n with the parsed fragment.
func SetInnerHTML(n *html.Node, fragment string) error {
	if n == nil {
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// Normalize merges adjacent text children of n and drops empty ones, like
// DOM Node.normalize limited to direct children.
func Normalize(n *html.Node) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.TextNode {
			c = next
			continue
		}
		for next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			after := next.NextSibling
			n.RemoveChild(next)
			next = after
		}
		if c.Data == "" {
			n.RemoveChild(c)
		}
		c = next
	}
}

// Unwrap replaces n with its children.
func Unwrap(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	parent := n.Parent
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}
