// Package aspects attaches handlers that run before, instead of, or after a
// method of one object or of every instance of a class, and detaches them
// again, restoring the original behavior.
//
// Hooking a single object rebinds it to a subclass synthesized for its class,
// which still reports the original class. Hooking a class, or an object whose
// class is already a substitute, patches the class in place. Either way the
// original implementation stays reachable under an alias and calls are
// routed through an interceptor.Interceptor.
//
// Registration and removal are serialized by one process-wide lock shared by
// every Engine. Dispatch takes no lock and sees a snapshot of the registered
// hooks.
package aspects

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/codysoyland/aspecthooks/pkg/hook"
	"github.com/codysoyland/aspecthooks/pkg/interceptor"
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
	"github.com/codysoyland/aspecthooks/pkg/signature"
)

// Re-exported positions and flags, so callers rarely need package hook.
const (
	PositionAfter          = hook.PositionAfter
	PositionInstead        = hook.PositionInstead
	PositionBefore         = hook.PositionBefore
	OptionAutomaticRemoval = hook.OptionAutomaticRemoval
)

// SelectorForwardInvocation names the dispatcher entry point. It can never be hooked.
const SelectorForwardInvocation = "forwardInvocation"

var defaultBlacklist = []string{
	objmodel.SelectorRetain,
	objmodel.SelectorRelease,
	objmodel.SelectorAutorelease,
	SelectorForwardInvocation,
}

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Default returns the process-wide engine, creating it on first use.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultEngine == nil {
		e, err := New()
		if err != nil {
			panic(err)
		}
		defaultEngine = e
	}
	return defaultEngine
}

// SetDefault replaces the process-wide engine and returns the previous one.
// A nil e makes the next Default call create a fresh engine.
func SetDefault(e *Engine) *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultEngine
	defaultEngine = e
	return prev
}

// Hook registers handler on target with the default engine.
func Hook(target hook.Target, selector string, opts hook.Options, handler any) (*Token, error) {
	return Default().Hook(target, selector, opts, handler)
}

// HookClass registers handler for every instance of cls with the default engine.
func HookClass(cls *objmodel.Class, selector string, opts hook.Options, handler any) (*Token, error) {
	return Default().Hook(cls, selector, opts, handler)
}

// HookObject registers handler for obj alone with the default engine.
func HookObject(obj *objmodel.Object, selector string, opts hook.Options, handler any) (*Token, error) {
	return Default().Hook(obj, selector, opts, handler)
}

// New creates a new Engine
func New(opts ...Option) (*Engine, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if config.SignatureReader == nil {
		config.SignatureReader = signature.ReflectReader{}
	}

	logger := config.Logger
	if logger == nil {
		if config.Verbose {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			logger = slog.New(slog.DiscardHandler)
		}
	}

	blacklist := make(map[string]struct{}, len(defaultBlacklist)+len(config.Blacklist))
	for _, sel := range slices.Concat(defaultBlacklist, config.Blacklist) {
		blacklist[sel] = struct{}{}
	}

	i := interceptor.New(logger)
	i.SetMetrics(config.Metrics)
	i.SetTracing(config.Tracing)

	e := &Engine{
		config:      config,
		logger:      logger,
		interceptor: i,
		blacklist:   blacklist,
		state:       currentState(),
	}
	e.forward = func(inv *objmodel.Invocation) error {
		return e.interceptor.Dispatch(inv, e.state.patcher.fallback)
	}
	i.SetRemover(e.remove)
	return e, nil
}

// Hook registers handler to run at the position in opts whenever selector is
// sent to target. target is a *objmodel.Object or, to affect every instance,
// a *objmodel.Class.
//
// The handler is a func whose first parameter receives a hook.Info and whose
// remaining parameters, if any, receive a prefix of the method's arguments.
func (e *Engine) Hook(target hook.Target, selector string, opts hook.Options, handler any) (*Token, error) {
	tok, err := e.hook(target, selector, opts, handler)
	if err != nil {
		e.count(interceptor.MetricRegistrationFailures, map[string]string{"selector": selector})
		return nil, err
	}
	e.count(interceptor.MetricHooksRegistered, map[string]string{"selector": selector, "position": opts.String()})
	e.logger.Info("hook registered", "hook", tok.ID(), "target", targetName(target), "selector", selector, "position", opts.String())
	return tok, nil
}

func (e *Engine) hook(target hook.Target, selector string, opts hook.Options, handler any) (*Token, error) {
	cls, err := targetClass(target)
	if err != nil {
		return nil, err
	}
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrNoSuchMethod)
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	s := e.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, blocked := e.blacklist[selector]; blocked {
		return nil, fmt.Errorf("%w: %s", ErrSelectorBlacklisted, selector)
	}
	if selector == objmodel.SelectorDealloc && opts.Position() != hook.PositionBefore {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidDestructorPosition, opts)
	}

	method := cls.Method(selector)
	if method == nil {
		return nil, fmt.Errorf("%w: %s does not respond to %s", ErrNoSuchMethod, cls.Identity().Name(), selector)
	}

	_, classWide := target.(*objmodel.Class)
	if classWide {
		if err := s.tracker.check(cls, selector); err != nil {
			return nil, err
		}
	}

	desc, err := signature.Describe(e.config.SignatureReader, handler)
	if err != nil {
		return nil, err
	}
	if err := desc.CompatibleWith(method, hook.InfoType); err != nil {
		return nil, err
	}

	if classWide {
		s.tracker.track(cls, selector)
	}
	rec := hook.NewRecord(selector, target, opts, handler, desc)
	container := hook.ContainerFor(target, selector)
	container.Add(rec)

	patched, err := s.patcher.install(target, selector, e.forward, e.logger)
	if err != nil {
		container.Remove(rec)
		rec.Invalidate()
		if !container.HasHooks() {
			hook.DestroyContainer(target, selector)
			if classWide {
				s.tracker.untrack(cls, selector)
			}
		}
		return nil, err
	}

	s.records[rec] = registration{engine: e, patched: patched}
	return &Token{engine: e, record: rec}, nil
}

// HookCount returns the number of hooks registered on target for selector.
func (e *Engine) HookCount(target hook.Target, selector string) int {
	if _, err := targetClass(target); err != nil {
		return 0
	}
	return hook.LoadContainer(target, selector).Len()
}

// Token identifies one registered hook.
type Token struct {
	engine *Engine
	record *hook.Record
}

// ID returns the unique identifier of the hook.
func (t *Token) ID() uuid.UUID { return t.record.ID() }

// Selector returns the hooked selector.
func (t *Token) Selector() string { return t.record.Selector() }

func (t *Token) String() string { return t.record.String() }

// Remove deregisters the hook. It returns ErrTargetAlreadyReleased when the
// hook was already removed or its target no longer exists.
func (t *Token) Remove() error {
	return t.engine.remove(t.record)
}

// remove deregisters rec and tears down what only rec relied on. It is also
// called by the interceptor for automatic-removal hooks, which may belong to
// another engine; logs and metrics go to the engine that registered rec.
func (e *Engine) remove(rec *hook.Record) error {
	s := e.state
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, registered := s.records[rec]
	if !registered || !rec.Valid() {
		return ErrTargetAlreadyReleased
	}
	delete(s.records, rec)
	owner := reg.engine

	target, alive := rec.Target()
	classWide := rec.IsClassWide()
	sel := rec.Selector()
	rec.Invalidate()
	defer owner.count(interceptor.MetricHooksRemoved, map[string]string{"selector": sel})

	if !alive {
		s.patcher.release(reg.patched, sel, owner.logger)
		owner.logger.Debug("hook target released before removal", "hook", rec.ID(), "selector", sel)
		return ErrTargetAlreadyReleased
	}

	if container := hook.LoadContainer(target, sel); container != nil {
		container.Remove(rec)
		if !container.HasHooks() {
			hook.DestroyContainer(target, sel)
			if classWide {
				s.tracker.untrack(target.(*objmodel.Class), sel)
			}
		}
	}
	s.patcher.release(reg.patched, sel, owner.logger)
	if obj, ok := target.(*objmodel.Object); ok {
		s.patcher.restoreClass(obj, owner.logger)
	}

	owner.logger.Info("hook removed", "hook", rec.ID(), "target", targetName(target), "selector", sel)
	return nil
}

func (e *Engine) count(metric string, labels map[string]string) {
	if e.config.Metrics != nil {
		e.config.Metrics.IncrementCounter(metric, labels)
	}
}

// targetClass returns the class whose methods target responds with.
func targetClass(target hook.Target) (*objmodel.Class, error) {
	switch t := target.(type) {
	case *objmodel.Class:
		if t != nil {
			return t, nil
		}
	case *objmodel.Object:
		if t != nil {
			if t.Released() {
				return nil, fmt.Errorf("%w: object is released", ErrInvalidTarget)
			}
			return t.RuntimeClass(), nil
		}
	}
	return nil, ErrInvalidTarget
}

func targetName(target hook.Target) string {
	switch t := target.(type) {
	case *objmodel.Class:
		return "class " + t.Name()
	case *objmodel.Object:
		return "instance of " + t.Class().Name()
	}
	return fmt.Sprintf("%T", target)
}
