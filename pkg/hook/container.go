package hook

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

// AliasPrefix prefixes the selector under which an original implementation
// is preserved. Containers are attached to their target under the same key.
const AliasPrefix = "aspects__"

// AliasFor returns the alias selector for sel.
func AliasFor(sel string) string {
	return AliasPrefix + sel
}

// Lists is an immutable snapshot of a container's records in invocation order.
type Lists struct {
	Before  []*Record
	Instead []*Record
	After   []*Record
}

// HasHooks reports whether any list is non-empty.
func (l *Lists) HasHooks() bool {
	return len(l.Before) > 0 || len(l.Instead) > 0 || len(l.After) > 0
}

// Len returns the total number of records.
func (l *Lists) Len() int {
	return len(l.Before) + len(l.Instead) + len(l.After)
}

var emptyLists = &Lists{}

// Container holds the hooks of one (target, selector) pair. Writers replace
// the lists wholesale, so readers always see a consistent snapshot.
type Container struct {
	mu    sync.Mutex
	lists atomic.Pointer[Lists]
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	c := &Container{}
	c.lists.Store(emptyLists)
	return c
}

// Snapshot returns the current lists. The result must not be modified.
func (c *Container) Snapshot() *Lists {
	if c == nil {
		return emptyLists
	}
	return c.lists.Load()
}

// HasHooks reports whether the container holds any record.
func (c *Container) HasHooks() bool {
	return c.Snapshot().HasHooks()
}

// Len returns the number of records.
func (c *Container) Len() int {
	return c.Snapshot().Len()
}

// Add appends r to the list matching its position.
func (c *Container) Add(r *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := *c.lists.Load()
	switch r.Options().Position() {
	case PositionBefore:
		next.Before = appendRecord(next.Before, r)
	case PositionInstead:
		next.Instead = appendRecord(next.Instead, r)
	default:
		next.After = appendRecord(next.After, r)
	}
	c.lists.Store(&next)
}

// Remove deletes r by identity and reports whether it was present.
func (c *Container) Remove(r *Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := *c.lists.Load()
	var removed bool
	for _, list := range []*[]*Record{&next.Before, &next.Instead, &next.After} {
		if i := slices.Index(*list, r); i >= 0 {
			*list = slices.Delete(slices.Clone(*list), i, i+1)
			removed = true
			break
		}
	}
	if removed {
		c.lists.Store(&next)
	}
	return removed
}

func appendRecord(list []*Record, r *Record) []*Record {
	out := make([]*Record, len(list), len(list)+1)
	copy(out, list)
	return append(out, r)
}

// LoadContainer returns the container attached to t for sel, or nil.
func LoadContainer(t Target, sel string) *Container {
	v, ok := t.Associations().Load(AliasFor(sel))
	if !ok {
		return nil
	}
	return v.(*Container)
}

// ContainerFor returns the container attached to t for sel, creating it.
func ContainerFor(t Target, sel string) *Container {
	v, _ := t.Associations().LoadOrStore(AliasFor(sel), NewContainer())
	return v.(*Container)
}

// DestroyContainer detaches the container for sel from t.
func DestroyContainer(t Target, sel string) {
	t.Associations().Delete(AliasFor(sel))
}

// ClassContainer returns the container of the nearest class, starting at cls
// and walking up, that holds hooks for sel.
func ClassContainer(cls *objmodel.Class, sel string) *Container {
	for k := cls; k != nil; k = k.Superclass() {
		if c := LoadContainer(k, sel); c != nil && c.HasHooks() {
			return c
		}
	}
	return nil
}

// HasContainers reports whether t holds any non-empty container.
func HasContainers(t Target) bool {
	found := false
	t.Associations().Range(func(key string, value any) bool {
		if c, ok := value.(*Container); ok && strings.HasPrefix(key, AliasPrefix) && c.HasHooks() {
			found = true
			return false
		}
		return true
	})
	return found
}
