package aspects

import (
	"fmt"
	"sync"

	"github.com/codysoyland/aspecthooks/pkg/hook"
	"github.com/codysoyland/aspecthooks/pkg/interceptor"
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

// SubclassSuffix is appended to a class name to form the name of the
// subclass that hooked instances are rebound to.
const SubclassSuffix = "_Aspects_"

// typeRegistry is the Patched-Type Registry: the classes patched in place,
// keyed by name, along with the forwarder each one had before patching.
type typeRegistry struct {
	mu      sync.RWMutex
	entries map[string]objmodel.Forwarder
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{entries: make(map[string]objmodel.Forwarder)}
}

func (r *typeRegistry) add(name string, saved objmodel.Forwarder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = saved
}

func (r *typeRegistry) remove(name string) (objmodel.Forwarder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved, ok := r.entries[name]
	delete(r.entries, name)
	return saved, ok
}

func (r *typeRegistry) lookup(name string) (objmodel.Forwarder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	saved, ok := r.entries[name]
	return saved, ok
}

func (r *typeRegistry) contains(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

type patchKey struct {
	class    *objmodel.Class
	selector string
}

// patch is the state of one redirected selector. refs counts the live
// records relying on it.
type patch struct {
	refs      int
	installed bool
	aliased   bool
	shadowed  *objmodel.Method
}

// patcher installs and removes the dispatcher on classes. Everything except
// the lookups made by fallback is guarded by hookState.mu.
type patcher struct {
	registry *typeRegistry
	patches  map[patchKey]*patch

	mu          sync.RWMutex
	synthesized map[*objmodel.Class]struct{}
}

func newPatcher() *patcher {
	return &patcher{
		registry:    newTypeRegistry(),
		patches:     make(map[patchKey]*patch),
		synthesized: make(map[*objmodel.Class]struct{}),
	}
}

// install makes sure calls of sel on target reach the dispatcher and returns
// the class that now carries the redirect. forwarder is installed on classes
// not patched yet.
func (p *patcher) install(target hook.Target, sel string, forwarder objmodel.Forwarder, logger interceptor.Logger) (*objmodel.Class, error) {
	var cls *objmodel.Class
	switch t := target.(type) {
	case *objmodel.Class:
		cls = t
		p.patchInPlace(cls, forwarder, logger)
	case *objmodel.Object:
		rt := t.RuntimeClass()
		switch {
		case p.isSynthesized(rt):
			cls = rt
		case rt.Identity() != rt:
			cls = rt
			p.patchInPlace(cls, forwarder, logger)
		default:
			sub, err := p.subclass(rt, forwarder, logger)
			if err != nil {
				return nil, err
			}
			t.SetRuntimeClass(sub)
			cls = sub
		}
	default:
		return nil, ErrInvalidTarget
	}

	p.hookSelector(cls, sel, logger)
	return cls, nil
}

// subclass returns the cached subclass for cls, creating it on first use.
func (p *patcher) subclass(cls *objmodel.Class, forwarder objmodel.Forwarder, logger interceptor.Logger) (*objmodel.Class, error) {
	name := cls.Name() + SubclassSuffix
	sub := objmodel.LookupClass(name)
	if sub == nil {
		var err error
		if sub, err = objmodel.NewClass(name, cls); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrAllocationFailed, name, err)
		}
	} else if sub.Superclass() != cls {
		return nil, fmt.Errorf("%w: %s exists and does not derive from %s", ErrAllocationFailed, name, cls.Name())
	}

	if !p.isSynthesized(sub) {
		sub.SetForwarder(forwarder)
		sub.SetReportedClass(cls)

		p.mu.Lock()
		p.synthesized[sub] = struct{}{}
		p.mu.Unlock()
		logger.Debug("synthesized subclass", "class", cls.Name(), "subclass", name)
	}
	return sub, nil
}

func (p *patcher) patchInPlace(cls *objmodel.Class, forwarder objmodel.Forwarder, logger interceptor.Logger) {
	if p.registry.contains(cls.Name()) {
		return
	}
	saved := cls.SetForwarder(forwarder)
	p.registry.add(cls.Name(), saved)
	logger.Debug("patched class in place", "class", cls.Name())
}

func (p *patcher) isSynthesized(cls *objmodel.Class) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.synthesized[cls]
	return ok
}

// hookSelector points sel on cls at the dispatcher, keeping the current
// implementation reachable under its alias.
func (p *patcher) hookSelector(cls *objmodel.Class, sel string, logger interceptor.Logger) {
	key := patchKey{cls, sel}
	pt := p.patches[key]
	if pt == nil {
		pt = &patch{}
		p.patches[key] = pt
	}
	pt.refs++
	if pt.refs > 1 {
		return
	}

	if own := cls.OwnMethod(sel); own != nil && own.IsForwarding() {
		return
	}

	current := cls.Method(sel)
	if !current.IsForwarding() {
		cls.ReplaceMethod(current.Renamed(hook.AliasFor(sel)))
		pt.aliased = true
	}
	pt.shadowed = cls.ReplaceMethod(current.Forwarding())
	pt.installed = true
	logger.Debug("installed dispatcher", "class", cls.Name(), "selector", sel)
}

// release drops one reference to the redirect of sel on cls and restores the
// previous implementation when none remain.
func (p *patcher) release(cls *objmodel.Class, sel string, logger interceptor.Logger) {
	key := patchKey{cls, sel}
	pt := p.patches[key]
	if pt == nil {
		return
	}
	pt.refs--
	if pt.refs > 0 {
		return
	}
	delete(p.patches, key)

	if pt.installed {
		if pt.aliased && cls.OwnMethod(hook.AliasFor(sel)) == nil {
			panic(fmt.Sprintf("aspects: alias %s missing on %s during teardown", hook.AliasFor(sel), cls.Name()))
		}
		if own := cls.OwnMethod(sel); own != nil && own.IsForwarding() {
			if pt.shadowed != nil {
				cls.ReplaceMethod(pt.shadowed)
			} else {
				cls.RemoveMethod(sel)
			}
		}
		logger.Debug("restored original implementation", "class", cls.Name(), "selector", sel)
	}

	if !p.isPatched(cls) {
		p.unpatchInPlace(cls, logger)
	}
}

func (p *patcher) isPatched(cls *objmodel.Class) bool {
	for key := range p.patches {
		if key.class == cls {
			return true
		}
	}
	return false
}

func (p *patcher) unpatchInPlace(cls *objmodel.Class, logger interceptor.Logger) {
	saved, ok := p.registry.remove(cls.Name())
	if !ok {
		return
	}
	cls.SetForwarder(saved)
	logger.Debug("unpatched class", "class", cls.Name())
}

// restoreClass rebinds obj to its original class once it holds no hooks.
func (p *patcher) restoreClass(obj *objmodel.Object, logger interceptor.Logger) {
	rt := obj.RuntimeClass()
	if !p.isSynthesized(rt) || hook.HasContainers(obj) {
		return
	}
	obj.SetRuntimeClass(rt.Superclass())
	logger.Debug("restored instance class", "class", rt.Superclass().Name())
}

// fallback handles invocations the dispatcher could not serve, using the
// forwarder that was in place before the patch.
func (p *patcher) fallback(inv *objmodel.Invocation) error {
	for cls := inv.ResolvedClass(); cls != nil; cls = cls.Superclass() {
		if saved, ok := p.registry.lookup(cls.Name()); ok {
			if saved != nil {
				return saved(inv)
			}
			continue
		}
		if p.isSynthesized(cls) {
			continue
		}
		if f := cls.Forwarder(); f != nil {
			return f(inv)
		}
	}
	return &objmodel.UnrecognizedSelectorError{Class: inv.Target().Class().Name(), Selector: inv.Selector()}
}
