package library

import (
	"sync"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"golang.org/x/net/html"
)

// ScrollTarget describes the element a page was last scrolled to.
type ScrollTarget struct {
	// ID is the target's element ID, or that of its nearest ancestor with one.
	ID   string `json:"id"`
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// pageViewport records scroll and focus requests of a page's search module.
// The module calls it while holding its own lock, so reading the node here
// is safe.
type pageViewport struct {
	mu      sync.Mutex
	target  *ScrollTarget
	focused string
}

func (v *pageViewport) ScrollTo(n *html.Node) {
	if n == nil {
		return
	}
	t := &ScrollTarget{
		Tag:  n.Data,
		Text: dom.CollapseSpace(dom.Text(n)),
	}
	for p := n; p != nil; p = p.Parent {
		if id := dom.ID(p); id != "" {
			t.ID = id
			break
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.target = t
}

func (v *pageViewport) Focus(n *html.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.focused = dom.ID(n)
}

// Last returns the latest scroll target, or nil.
func (v *pageViewport) Last() *ScrollTarget {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.target == nil {
		return nil
	}
	t := *v.target
	return &t
}
