package aspects

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/codysoyland/aspecthooks/pkg/hook"
	"github.com/codysoyland/aspecthooks/pkg/interceptor"
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
	"github.com/codysoyland/aspecthooks/pkg/signature"
)

// recorder collects the order in which method bodies and handlers ran
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = nil
	return out
}

func (r *recorder) handler(label string) func(hook.Info) {
	return func(hook.Info) { r.add(label) }
}

func newShapeClass(t *testing.T, rec *recorder) *objmodel.Class {
	t.Helper()
	return objmodel.MustNewClass("Shape_"+uuid.NewString(), nil).
		MustAddMethod("area", func(self *objmodel.Object, animated bool) float64 {
			rec.add("original")
			return 42
		}).
		MustAddMethod("scale", func(self *objmodel.Object, factor float64) {
			rec.add("scale")
		})
}

// isolateState gives the engines a test creates their own process-wide
// state, restored when the test ends.
func isolateState(t *testing.T) *hookState {
	t.Helper()
	s := newHookState()
	prev := swapState(s)
	t.Cleanup(func() { swapState(prev) })
	return s
}

// newEngine returns an engine on a fresh state. Tests that need engines
// sharing state call isolateState once and New directly.
func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	isolateState(t)
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func area(t *testing.T, obj *objmodel.Object) float64 {
	t.Helper()
	got, err := obj.Send("area", true)
	require.NoError(t, err)
	return got.(float64)
}

func TestHookAfterArea(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	obj := cls.New()
	e := newEngine(t)

	var animatedSeen bool
	_, err := e.Hook(obj, "area", PositionAfter, func(info hook.Info, animated bool) {
		animatedSeen = animated
		assert.Same(t, obj, info.Instance())
		rec.add("after")
	})
	require.NoError(t, err)

	assert.Equal(t, 42.0, area(t, obj))
	assert.Equal(t, []string{"original", "after"}, rec.take())
	assert.True(t, animatedSeen)

	assert.Same(t, cls, obj.Class(), "the substitute reports the original class")
	assert.Equal(t, cls.Name()+SubclassSuffix, obj.RuntimeClass().Name())
	assert.Same(t, cls, obj.RuntimeClass().Superclass())

	other := cls.New()
	assert.Equal(t, 42.0, area(t, other))
	assert.Equal(t, []string{"original"}, rec.take(), "other instances are not affected")
}

func TestHookOrdering(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	obj := cls.New()
	e := newEngine(t)

	hooks := []struct {
		target hook.Target
		opts   hook.Options
		label  string
	}{
		{obj, PositionAfter, "instance-after-1"},
		{cls, PositionBefore, "class-before-1"},
		{obj, PositionBefore, "instance-before-1"},
		{cls, PositionAfter, "class-after-1"},
		{obj, PositionBefore, "instance-before-2"},
		{cls, PositionBefore, "class-before-2"},
		{obj, PositionAfter, "instance-after-2"},
	}
	for _, h := range hooks {
		_, err := e.Hook(h.target, "area", h.opts, rec.handler(h.label))
		require.NoError(t, err)
	}

	area(t, obj)
	assert.Equal(t, []string{
		"class-before-1", "class-before-2",
		"instance-before-1", "instance-before-2",
		"original",
		"class-after-1",
		"instance-after-1", "instance-after-2",
	}, rec.take())

	_, err := e.Hook(obj, "area", PositionInstead, rec.handler("instance-instead"))
	require.NoError(t, err)
	_, err = e.Hook(cls, "area", PositionInstead, rec.handler("class-instead"))
	require.NoError(t, err)

	area(t, obj)
	assert.Equal(t, []string{
		"class-before-1", "class-before-2",
		"instance-before-1", "instance-before-2",
		"class-instead", "instance-instead",
		"class-after-1",
		"instance-after-1", "instance-after-2",
	}, rec.take())

	plain := cls.New()
	area(t, plain)
	assert.Equal(t, []string{"class-before-1", "class-before-2", "class-instead", "class-after-1"}, rec.take())
}

func TestHookInsteadSetsReturnValue(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	obj := cls.New()
	e := newEngine(t)

	_, err := e.Hook(obj, "area", PositionInstead, func(info hook.Info) {
		require.NoError(t, info.OriginalInvocation().SetReturnValue(7.0))
	})
	require.NoError(t, err)

	assert.Equal(t, 7.0, area(t, obj))
	assert.Empty(t, rec.take(), "the original body does not run")
}

func TestHookOncePerHierarchy(t *testing.T) {
	rec := &recorder{}
	a := newShapeClass(t, rec)
	b := objmodel.MustNewClass("Square_"+uuid.NewString(), a)
	e := newEngine(t)

	first, err := e.Hook(a, "area", PositionBefore, rec.handler("a"))
	require.NoError(t, err)

	_, err = e.Hook(b, "area", PositionBefore, rec.handler("b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyHookedInHierarchy)
	var herr *HierarchyError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, a.Name(), herr.HookedIn)
	assert.Equal(t, b.Name(), herr.Class)
	assert.Equal(t, "area", herr.Selector)

	second, err := e.Hook(a, "area", PositionAfter, rec.handler("a-again"))
	require.NoError(t, err, "hooking the same level again is allowed")
	assert.Equal(t, 2, e.HookCount(a, "area"), "hooks at the same level are additive")

	area(t, b.New())
	assert.Equal(t, []string{"a", "original", "a-again"}, rec.take())

	_, err = e.Hook(b, "scale", PositionBefore, rec.handler("b-scale"))
	require.NoError(t, err, "other selectors are tracked independently")

	require.NoError(t, first.Remove())
	_, err = e.Hook(b, "area", PositionBefore, rec.handler("b"))
	require.Error(t, err, "a still holds one hook")

	require.NoError(t, second.Remove())
	_, err = e.Hook(b, "area", PositionBefore, rec.handler("b"))
	require.NoError(t, err)

	_, err = e.Hook(a, "area", PositionBefore, rec.handler("a"))
	require.Error(t, err)
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, b.Name(), herr.HookedIn, "the subclass holding the hook is reported")
}

func TestInstanceHooksIgnoreHierarchy(t *testing.T) {
	rec := &recorder{}
	a := newShapeClass(t, rec)
	b := objmodel.MustNewClass("Square_"+uuid.NewString(), a)
	e := newEngine(t)

	_, err := e.Hook(a, "area", PositionBefore, rec.handler("class"))
	require.NoError(t, err)

	obj := b.New()
	_, err = e.Hook(obj, "area", PositionAfter, rec.handler("instance"))
	require.NoError(t, err)

	area(t, obj)
	assert.Equal(t, []string{"class", "original", "instance"}, rec.take())
}

func TestRemoveRestoresBehavior(t *testing.T) {
	t.Run("instance", func(t *testing.T) {
		rec := &recorder{}
		cls := newShapeClass(t, rec)
		obj := cls.New()
		e := newEngine(t)

		tok, err := e.Hook(obj, "area", PositionBefore, rec.handler("before"))
		require.NoError(t, err)
		area(t, obj)
		assert.Equal(t, []string{"before", "original"}, rec.take())

		require.NoError(t, tok.Remove())
		assert.ErrorIs(t, tok.Remove(), ErrTargetAlreadyReleased)

		assert.Same(t, cls, obj.RuntimeClass())
		assert.Equal(t, 0, e.HookCount(obj, "area"))
		assert.Equal(t, 42.0, area(t, obj))
		assert.Equal(t, []string{"original"}, rec.take())

		sub := objmodel.LookupClass(cls.Name() + SubclassSuffix)
		require.NotNil(t, sub, "the subclass stays cached")
		assert.Nil(t, sub.OwnMethod("area"))
		assert.Empty(t, e.state.patcher.patches)
	})

	t.Run("class", func(t *testing.T) {
		rec := &recorder{}
		cls := newShapeClass(t, rec)
		original := cls.OwnMethod("area")
		e := newEngine(t)

		tok, err := e.Hook(cls, "area", PositionAfter, rec.handler("after"))
		require.NoError(t, err)
		assert.True(t, cls.OwnMethod("area").IsForwarding())
		assert.True(t, e.state.patcher.registry.contains(cls.Name()))

		require.NoError(t, tok.Remove())
		assert.ErrorIs(t, tok.Remove(), ErrTargetAlreadyReleased)

		assert.Same(t, original, cls.OwnMethod("area"))
		assert.NotNil(t, cls.OwnMethod(hook.AliasFor("area")), "the alias is kept")
		assert.Nil(t, cls.Forwarder())
		assert.False(t, e.state.patcher.registry.contains(cls.Name()))
		assert.Empty(t, e.state.tracker.nodes)

		area(t, cls.New())
		assert.Equal(t, []string{"original"}, rec.take())
	})

	t.Run("inherited method", func(t *testing.T) {
		rec := &recorder{}
		a := newShapeClass(t, rec)
		b := objmodel.MustNewClass("Square_"+uuid.NewString(), a)
		e := newEngine(t)

		tok, err := e.Hook(b, "area", PositionBefore, rec.handler("before"))
		require.NoError(t, err)
		area(t, b.New())
		assert.Equal(t, []string{"before", "original"}, rec.take())

		require.NoError(t, tok.Remove())
		assert.Nil(t, b.OwnMethod("area"), "b inherits area again")

		_, err = e.Hook(a, "area", PositionBefore, rec.handler("a"))
		require.NoError(t, err)
		area(t, b.New())
		assert.Equal(t, []string{"a", "original"}, rec.take(), "later hooks on the superclass reach b")
	})
}

func TestRemoveKeepsUnrelatedHooks(t *testing.T) {
	t.Run("other selector", func(t *testing.T) {
		rec := &recorder{}
		cls := newShapeClass(t, rec)
		obj := cls.New()
		e := newEngine(t)

		areaTok, err := e.Hook(obj, "area", PositionBefore, rec.handler("area-hook"))
		require.NoError(t, err)
		_, err = e.Hook(obj, "scale", PositionBefore, rec.handler("scale-hook"))
		require.NoError(t, err)

		require.NoError(t, areaTok.Remove())
		assert.NotSame(t, cls, obj.RuntimeClass(), "obj still has hooks")

		area(t, obj)
		_, err = obj.Send("scale", 2.0)
		require.NoError(t, err)
		assert.Equal(t, []string{"original", "scale-hook", "scale"}, rec.take())
	})

	t.Run("other instance", func(t *testing.T) {
		rec := &recorder{}
		cls := newShapeClass(t, rec)
		first, second := cls.New(), cls.New()
		e := newEngine(t)

		tok, err := e.Hook(first, "area", PositionBefore, rec.handler("first"))
		require.NoError(t, err)
		_, err = e.Hook(second, "area", PositionBefore, rec.handler("second"))
		require.NoError(t, err)

		require.NoError(t, tok.Remove())
		assert.Same(t, cls, first.RuntimeClass())

		area(t, first)
		area(t, second)
		assert.Equal(t, []string{"original", "second", "original"}, rec.take())
	})

	t.Run("class hook under instance hook", func(t *testing.T) {
		rec := &recorder{}
		cls := newShapeClass(t, rec)
		obj := cls.New()
		e := newEngine(t)

		classTok, err := e.Hook(cls, "area", PositionBefore, rec.handler("class"))
		require.NoError(t, err)
		instTok, err := e.Hook(obj, "area", PositionAfter, rec.handler("instance"))
		require.NoError(t, err)

		require.NoError(t, classTok.Remove())
		area(t, obj)
		assert.Equal(t, []string{"original", "instance"}, rec.take())

		require.NoError(t, instTok.Remove())
		area(t, obj)
		assert.Equal(t, []string{"original"}, rec.take())
		assert.Same(t, cls, obj.RuntimeClass())
		assert.Nil(t, cls.Forwarder())
	})
}

func TestSignatureGate(t *testing.T) {
	tests := []struct {
		name    string
		handler any
		wantErr error
	}{
		{name: "no parameters", handler: func() {}},
		{name: "info only", handler: func(hook.Info) {}},
		{name: "info as any", handler: func(any) {}},
		{name: "full prefix", handler: func(hook.Info, bool) {}},
		{name: "too many parameters", handler: func(hook.Info, bool, int) {}, wantErr: ErrIncompatibleSignature},
		{name: "wrong category", handler: func(hook.Info, int) {}, wantErr: ErrIncompatibleSignature},
		{name: "first parameter cannot hold info", handler: func(string) {}, wantErr: ErrIncompatibleSignature},
		{name: "not a func", handler: "handler", wantErr: ErrMissingSignature},
		{name: "variadic", handler: func(...any) {}, wantErr: ErrMissingSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			obj := newShapeClass(t, rec).New()
			e := newEngine(t)

			tok, err := e.Hook(obj, "area", PositionBefore, tt.handler)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tok)
				assert.Equal(t, 0, e.HookCount(obj, "area"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42.0, area(t, obj))
		})
	}
}

type fixedReader struct {
	types []reflect.Type
	err   error
}

func (r fixedReader) ParameterKinds(any) ([]reflect.Type, error) {
	return r.types, r.err
}

func TestWithSignatureReader(t *testing.T) {
	rec := &recorder{}
	obj := newShapeClass(t, rec).New()

	e := newEngine(t, WithSignatureReader(fixedReader{err: signature.ErrMissingSignature}))
	_, err := e.Hook(obj, "area", PositionBefore, func(hook.Info) {})
	assert.ErrorIs(t, err, ErrMissingSignature)

	e = newEngine(t, WithSignatureReader(fixedReader{types: []reflect.Type{hook.InfoType}}))
	_, err = e.Hook(obj, "area", PositionBefore, func(hook.Info) { rec.add("hook") })
	require.NoError(t, err)
	area(t, obj)
	assert.Equal(t, []string{"hook", "original"}, rec.take())
}

func TestAutomaticRemoval(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	obj := cls.New()
	e := newEngine(t)

	tok, err := e.Hook(obj, "area", PositionBefore|OptionAutomaticRemoval, rec.handler("once"))
	require.NoError(t, err)

	for range 5 {
		area(t, obj)
	}
	assert.Equal(t, []string{"once", "original", "original", "original", "original", "original"}, rec.take())
	assert.Equal(t, 0, e.HookCount(obj, "area"))
	assert.Same(t, cls, obj.RuntimeClass())
	assert.ErrorIs(t, tok.Remove(), ErrTargetAlreadyReleased)
}

func TestConcurrentRegistration(t *testing.T) {
	const n = 32

	rec := &recorder{}
	cls := newShapeClass(t, rec)
	obj := cls.New()
	e := newEngine(t)

	var fired atomic.Int32
	tokens := make([]*Token, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			opts := PositionBefore
			if i%2 == 1 {
				opts = PositionAfter
			}
			tok, err := e.Hook(obj, "area", opts, func(hook.Info) { fired.Add(1) })
			tokens[i] = tok
			return err
		})
	}
	require.NoError(t, g.Wait())

	lists := hook.LoadContainer(obj, "area").Snapshot()
	assert.Len(t, lists.Before, n/2)
	assert.Len(t, lists.After, n/2)

	want := make(map[uuid.UUID]bool, n)
	for _, tok := range tokens {
		want[tok.ID()] = true
	}
	got := make(map[uuid.UUID]bool, n)
	for _, r := range append(lists.Before, lists.After...) {
		got[r.ID()] = true
	}
	assert.Equal(t, want, got)

	var calls errgroup.Group
	for range 8 {
		calls.Go(func() error {
			_, err := obj.Send("area", false)
			return err
		})
	}
	require.NoError(t, calls.Wait())
	assert.Equal(t, int32(8*n), fired.Load())

	var removals errgroup.Group
	for _, tok := range tokens {
		removals.Go(tok.Remove)
	}
	require.NoError(t, removals.Wait())
	assert.Equal(t, 0, e.HookCount(obj, "area"))
	assert.Same(t, cls, obj.RuntimeClass())
}

func TestSendWhileHooking(t *testing.T) {
	const cycles = 2000

	tests := []struct {
		name   string
		target func(cls *objmodel.Class, obj *objmodel.Object) hook.Target
	}{
		{name: "class", target: func(cls *objmodel.Class, _ *objmodel.Object) hook.Target { return cls }},
		{name: "instance", target: func(_ *objmodel.Class, obj *objmodel.Object) hook.Target { return obj }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := objmodel.MustNewClass("Busy_"+uuid.NewString(), nil).
				MustAddMethod("area", func(self *objmodel.Object, animated bool) float64 {
					return 42
				})
			obj := cls.New()
			e := newEngine(t)

			var stop atomic.Bool
			var senders errgroup.Group
			for range 4 {
				senders.Go(func() error {
					for !stop.Load() {
						got, err := obj.Send("area", true)
						if err != nil {
							return err
						}
						if got != float64(42) {
							return fmt.Errorf("area returned %v", got)
						}
					}
					return nil
				})
			}

			var hookErr error
			for i := 0; i < cycles && hookErr == nil; i++ {
				tok, err := e.Hook(tt.target(cls, obj), "area", PositionBefore, func(hook.Info) {})
				if err == nil {
					err = tok.Remove()
				}
				hookErr = err
			}
			stop.Store(true)

			require.NoError(t, senders.Wait(), "sends racing with removal must not fail")
			require.NoError(t, hookErr)
			assert.Same(t, cls, obj.RuntimeClass())
			assert.False(t, cls.OwnMethod("area").IsForwarding())
			assert.Empty(t, e.state.records)
		})
	}
}

func TestEnginesShareHookedTypes(t *testing.T) {
	isolateState(t)
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	first, second := cls.New(), cls.New()

	e1, err := New()
	require.NoError(t, err)
	e2, err := New()
	require.NoError(t, err)

	_, err = e1.Hook(first, "area", PositionBefore|OptionAutomaticRemoval, rec.handler("once"))
	require.NoError(t, err)
	tok, err := e2.Hook(second, "scale", PositionAfter, rec.handler("scaled"))
	require.NoError(t, err)
	assert.Same(t, first.RuntimeClass(), second.RuntimeClass(), "one subclass serves both engines")

	for range 3 {
		area(t, first)
	}
	assert.Equal(t, []string{"once", "original", "original", "original"}, rec.take())
	assert.Same(t, cls, first.RuntimeClass())

	_, err = second.Send("scale", 2.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"scale", "scaled"}, rec.take())

	require.NoError(t, e1.remove(tok.record), "any engine on the same state can remove the record")
	assert.ErrorIs(t, tok.Remove(), ErrTargetAlreadyReleased)
	assert.Same(t, cls, second.RuntimeClass())
	assert.Empty(t, e2.state.records)
	assert.Empty(t, e1.state.patcher.patches)
}

func TestHookErrors(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	noop := func(hook.Info) {}

	tests := []struct {
		name     string
		target   hook.Target
		selector string
		opts     hook.Options
		handler  any
		engine   []Option
		wantErr  error
	}{
		{name: "retain", target: cls.New(), selector: objmodel.SelectorRetain, handler: noop, wantErr: ErrSelectorBlacklisted},
		{name: "release", target: cls, selector: objmodel.SelectorRelease, handler: noop, wantErr: ErrSelectorBlacklisted},
		{name: "autorelease", target: cls.New(), selector: objmodel.SelectorAutorelease, handler: noop, wantErr: ErrSelectorBlacklisted},
		{name: "forward invocation", target: cls.New(), selector: SelectorForwardInvocation, handler: noop, wantErr: ErrSelectorBlacklisted},
		{name: "configured blacklist", target: cls.New(), selector: "scale", handler: noop, engine: []Option{WithBlacklist("scale")}, wantErr: ErrSelectorBlacklisted},
		{name: "dealloc after", target: cls.New(), selector: objmodel.SelectorDealloc, opts: PositionAfter, handler: noop, wantErr: ErrInvalidDestructorPosition},
		{name: "dealloc instead", target: cls.New(), selector: objmodel.SelectorDealloc, opts: PositionInstead, handler: noop, wantErr: ErrInvalidDestructorPosition},
		{name: "unknown selector", target: cls.New(), selector: "perimeter", handler: noop, wantErr: ErrNoSuchMethod},
		{name: "empty selector", target: cls.New(), selector: "", handler: noop, wantErr: ErrNoSuchMethod},
		{name: "nil target", target: nil, selector: "area", handler: noop, wantErr: ErrInvalidTarget},
		{name: "nil object", target: (*objmodel.Object)(nil), selector: "area", handler: noop, wantErr: ErrInvalidTarget},
		{name: "nil handler", target: cls.New(), selector: "area", handler: nil, wantErr: ErrNilHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, tt.engine...)
			tok, err := e.Hook(tt.target, tt.selector, tt.opts, tt.handler)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, tok)
			assert.Empty(t, e.state.records)
			assert.Zero(t, e.HookCount(tt.target, tt.selector))
		})
	}
}

func TestHookDeallocBefore(t *testing.T) {
	rec := &recorder{}
	obj := newShapeClass(t, rec).New()
	e := newEngine(t)

	var seen *objmodel.Object
	tok, err := e.Hook(obj, objmodel.SelectorDealloc, PositionBefore, func(info hook.Info) {
		seen = info.Instance()
	})
	require.NoError(t, err)

	require.NoError(t, obj.Release())
	assert.Same(t, obj, seen)

	assert.ErrorIs(t, tok.Remove(), ErrTargetAlreadyReleased)
	assert.Empty(t, e.state.patcher.patches, "the patch reference is dropped anyway")
}

func TestReleasedTarget(t *testing.T) {
	rec := &recorder{}
	obj := newShapeClass(t, rec).New()
	e := newEngine(t)

	tok, err := e.Hook(obj, "area", PositionAfter, rec.handler("after"))
	require.NoError(t, err)

	require.NoError(t, obj.Release())
	assert.ErrorIs(t, tok.Remove(), ErrTargetAlreadyReleased)
	assert.ErrorIs(t, tok.Remove(), ErrTargetAlreadyReleased)
	assert.Empty(t, e.state.records)

	_, err = e.Hook(obj, "area", PositionAfter, rec.handler("after"))
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestAllocationFailed(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	objmodel.MustNewClass(cls.Name()+SubclassSuffix, nil)
	obj := cls.New()
	e := newEngine(t)

	_, err := e.Hook(obj, "area", PositionBefore, rec.handler("before"))
	assert.ErrorIs(t, err, ErrAllocationFailed)

	assert.Same(t, cls, obj.RuntimeClass())
	assert.Equal(t, 0, e.HookCount(obj, "area"))
	assert.Empty(t, e.state.records)
	area(t, obj)
	assert.Equal(t, []string{"original"}, rec.take())
}

func TestSubstitutedObjectPatchedInPlace(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	observed := objmodel.MustNewClass("Observed_"+uuid.NewString(), cls)
	observed.SetReportedClass(cls)
	obj := observed.New()
	e := newEngine(t)

	tok, err := e.Hook(obj, "area", PositionAfter, rec.handler("after"))
	require.NoError(t, err)

	assert.Same(t, observed, obj.RuntimeClass(), "already substituted objects are not rebound")
	assert.True(t, observed.OwnMethod("area").IsForwarding())
	assert.True(t, e.state.patcher.registry.contains(observed.Name()))
	assert.Nil(t, objmodel.LookupClass(observed.Name()+SubclassSuffix))

	area(t, obj)
	assert.Equal(t, []string{"original", "after"}, rec.take())

	require.NoError(t, tok.Remove())
	assert.False(t, e.state.patcher.registry.contains(observed.Name()))
	assert.Nil(t, observed.OwnMethod("area"))
	assert.Nil(t, observed.Forwarder())
	area(t, obj)
	assert.Equal(t, []string{"original"}, rec.take())
}

func TestFallbackToPreviousForwarder(t *testing.T) {
	rec := &recorder{}
	cls := newShapeClass(t, rec)
	var forwarded []string
	cls.SetForwarder(func(inv *objmodel.Invocation) error {
		forwarded = append(forwarded, inv.Selector())
		return nil
	})
	require.NoError(t, cls.Install(cls.OwnMethod("scale").Renamed("resize").Forwarding()))
	e := newEngine(t)

	tok, err := e.Hook(cls, "area", PositionBefore, rec.handler("before"))
	require.NoError(t, err)

	_, err = cls.New().Send("resize", 2.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"resize"}, forwarded, "unhooked forwarding methods reach the previous forwarder")

	require.NoError(t, tok.Remove())
	assert.NotNil(t, cls.Forwarder())
	_, err = cls.New().Send("resize", 2.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"resize", "resize"}, forwarded)
}

func TestMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := NewMockMetricsCollector(ctrl)

	rec := &recorder{}
	obj := newShapeClass(t, rec).New()
	e := newEngine(t, WithMetrics(metrics))

	metrics.EXPECT().IncrementCounter(interceptor.MetricHooksRegistered, map[string]string{"selector": "area", "position": "after"})
	metrics.EXPECT().IncrementCounter(interceptor.MetricRegistrationFailures, map[string]string{"selector": "perimeter"})
	metrics.EXPECT().IncrementCounter(interceptor.MetricHandlerInvocations, map[string]string{"selector": "area", "position": "after"})
	metrics.EXPECT().IncrementCounter(interceptor.MetricDispatchTotal, gomock.Any())
	metrics.EXPECT().RecordDuration(interceptor.MetricDispatchDuration, gomock.Any(), gomock.Any())
	metrics.EXPECT().IncrementCounter(interceptor.MetricHooksRemoved, map[string]string{"selector": "area"})

	tok, err := e.Hook(obj, "area", PositionAfter, rec.handler("after"))
	require.NoError(t, err)
	_, err = e.Hook(obj, "perimeter", PositionAfter, rec.handler("after"))
	require.Error(t, err)

	area(t, obj)
	require.NoError(t, tok.Remove())
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rec := &recorder{}
	obj := newShapeClass(t, rec).New()
	e := newEngine(t, WithLogger(logger))

	tok, err := e.Hook(obj, "area", PositionAfter, rec.handler("after"))
	require.NoError(t, err)
	require.NoError(t, tok.Remove())

	out := buf.String()
	assert.Contains(t, out, "hook registered")
	assert.Contains(t, out, "installed dispatcher")
	assert.Contains(t, out, "hook removed")
	assert.Contains(t, out, fmt.Sprintf("hook=%s", tok.ID()))
}

func TestOptionErrors(t *testing.T) {
	_, err := New(WithSignatureReader(nil))
	assert.Error(t, err)

	_, err = New(WithBlacklist("area", ""))
	assert.Error(t, err)
}

func TestDefaultEngine(t *testing.T) {
	prev := SetDefault(nil)
	t.Cleanup(func() { SetDefault(prev) })

	e := Default()
	assert.Same(t, e, Default())

	rec := &recorder{}
	cls := newShapeClass(t, rec)
	obj := cls.New()

	tok, err := HookObject(obj, "area", PositionBefore, rec.handler("object"))
	require.NoError(t, err)
	_, err = HookClass(cls, "scale", PositionBefore, rec.handler("class"))
	require.NoError(t, err)
	assert.Equal(t, 1, e.HookCount(obj, "area"))

	area(t, obj)
	_, err = obj.Send("scale", 1.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"object", "original", "class", "scale"}, rec.take())

	require.NoError(t, tok.Remove())

	fresh := newEngine(t)
	assert.Same(t, e, SetDefault(fresh))
	assert.Same(t, fresh, Default())
}

func TestTokenString(t *testing.T) {
	rec := &recorder{}
	obj := newShapeClass(t, rec).New()
	e := newEngine(t)

	tok, err := e.Hook(obj, "area", PositionInstead, func(hook.Info, bool) {})
	require.NoError(t, err)
	assert.Equal(t, "area", tok.Selector())
	assert.Contains(t, tok.String(), tok.ID().String())
	assert.Contains(t, tok.String(), "instead")
	assert.Contains(t, tok.String(), "(@,B)")
}
