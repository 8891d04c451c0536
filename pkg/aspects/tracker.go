package aspects

import (
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

// trackerNode is the class-wide hook bookkeeping for one class. For each
// selector it stores the descendant node that marked it, or nil when the
// selector is hooked at this very class.
type trackerNode struct {
	class     *objmodel.Class
	selectors map[string]*trackerNode
}

// tracker keeps a selector hooked class-wide at no more than one level of an
// inheritance chain. It is guarded by hookState.mu.
type tracker struct {
	nodes map[*objmodel.Class]*trackerNode
}

func newTracker() *tracker {
	return &tracker{nodes: make(map[*objmodel.Class]*trackerNode)}
}

// check reports whether sel may be hooked class-wide on cls.
func (t *tracker) check(cls *objmodel.Class, sel string) error {
	for k := cls; k != nil; k = k.Superclass() {
		node := t.nodes[k]
		if node == nil {
			continue
		}
		marker, ok := node.selectors[sel]
		if !ok {
			continue
		}
		if marker == nil && k == cls {
			return nil
		}
		return &HierarchyError{Selector: sel, Class: cls.Name(), HookedIn: t.hookedIn(node, sel).Name()}
	}
	return nil
}

// hookedIn follows the markers down to the class that holds the hook.
func (t *tracker) hookedIn(node *trackerNode, sel string) *objmodel.Class {
	for {
		next := node.selectors[sel]
		if next == nil {
			return node.class
		}
		node = next
	}
}

// track records sel at cls and marks every ancestor with it.
func (t *tracker) track(cls *objmodel.Class, sel string) {
	prev := t.node(cls)
	prev.selectors[sel] = nil
	for k := cls.Superclass(); k != nil; k = k.Superclass() {
		node := t.node(k)
		node.selectors[sel] = prev
		prev = node
	}
}

// untrack reverses track, leaving markers placed by other descendants alone.
func (t *tracker) untrack(cls *objmodel.Class, sel string) {
	prev := t.nodes[cls]
	if prev == nil {
		return
	}
	if marker, ok := prev.selectors[sel]; !ok || marker != nil {
		return
	}
	delete(prev.selectors, sel)
	t.prune(prev)

	for k := cls.Superclass(); k != nil; k = k.Superclass() {
		node := t.nodes[k]
		if node == nil || node.selectors[sel] != prev {
			return
		}
		delete(node.selectors, sel)
		t.prune(node)
		prev = node
	}
}

func (t *tracker) node(cls *objmodel.Class) *trackerNode {
	node := t.nodes[cls]
	if node == nil {
		node = &trackerNode{class: cls, selectors: make(map[string]*trackerNode)}
		t.nodes[cls] = node
	}
	return node
}

func (t *tracker) prune(node *trackerNode) {
	if len(node.selectors) == 0 {
		delete(t.nodes, node.class)
	}
}
