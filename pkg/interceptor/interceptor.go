// Package interceptor implements the dispatcher that stands in for hooked
// methods: it runs the registered hooks around, or instead of, the original
// implementation.
package interceptor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/codysoyland/aspecthooks/pkg/hook"
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

// Interceptor dispatches forwarded invocations through hook containers.
// Dispatch takes no locks: it works on container snapshots, so concurrent
// registration is only visible to later calls.
type Interceptor struct {
	logger  Logger
	metrics MetricsCollector
	tracing TracingCollector
	remove  func(*hook.Record) error
}

// New creates an interceptor. A nil logger discards output.
func New(logger Logger) *Interceptor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Interceptor{logger: logger}
}

// SetMetrics sets the metrics collector.
func (i *Interceptor) SetMetrics(m MetricsCollector) {
	i.metrics = m
}

// SetTracing sets the tracing collector.
func (i *Interceptor) SetTracing(t TracingCollector) {
	i.tracing = t
}

// SetRemover sets the function used to drop automatic-removal hooks once
// they have run.
func (i *Interceptor) SetRemover(remove func(*hook.Record) error) {
	i.remove = remove
}

// Dispatch runs one intercepted call.
//
// Order: class before hooks, instance before hooks, then either every
// instead hook (class first) or the original implementation, then class and
// instance after hooks. When the original cannot be found and no instead hook
// ran, inv is handed to fallback; a nil fallback yields the unrecognized
// selector fault.
func (i *Interceptor) Dispatch(inv *objmodel.Invocation, fallback objmodel.Forwarder) error {
	start := time.Now()
	self := inv.Target()
	original := inv.Selector()
	alias := hook.AliasFor(original)

	inv.SetSelector(alias)
	defer inv.SetSelector(original)

	// The target may be rebound while this call is in flight; keep using the
	// class the send was resolved against.
	resolved := inv.ResolvedClass()
	objectLists := hook.LoadContainer(self, original).Snapshot()
	classLists := hook.ClassContainer(resolved, original).Snapshot()

	labels := map[string]string{
		"class":    self.Class().Name(),
		"selector": original,
	}
	span := i.startSpan(inv, labels)

	info := newInfo(self, inv)
	var toRemove []*hook.Record
	run := func(records []*hook.Record) {
		for _, r := range records {
			if err := r.Invoke(info); err != nil {
				if !errors.Is(err, hook.ErrRecordInvalidated) {
					i.logger.Warn("skipping hook", "hook", r.ID(), "selector", original, "error", err)
					i.count(MetricHandlerSkipped, labels)
				}
				continue
			}
			i.count(MetricHandlerInvocations, map[string]string{"selector": original, "position": r.Options().String()})
			if r.Options().AutomaticRemoval() {
				toRemove = append(toRemove, r)
			}
		}
	}

	run(classLists.Before)
	run(objectLists.Before)

	respondsToAlias := true
	var err error
	if len(classLists.Instead) > 0 || len(objectLists.Instead) > 0 {
		run(classLists.Instead)
		run(objectLists.Instead)
	} else {
		respondsToAlias = false
		for cls := resolved; cls != nil; cls = cls.Superclass() {
			if cls.OwnMethod(alias) != nil {
				respondsToAlias = true
				err = inv.Invoke()
				break
			}
		}
	}

	run(classLists.After)
	run(objectLists.After)

	if !respondsToAlias {
		inv.SetSelector(original)
		i.logger.Debug("original implementation not found, forwarding", "class", labels["class"], "selector", original)
		if fallback != nil {
			err = fallback(inv)
		} else {
			err = &objmodel.UnrecognizedSelectorError{Class: labels["class"], Selector: original}
		}
		if errors.Is(err, objmodel.ErrUnrecognizedSelector) {
			i.count(MetricUnrecognizedSelector, labels)
		}
	}

	for _, r := range toRemove {
		if i.remove == nil {
			continue
		}
		if rerr := i.remove(r); rerr != nil {
			i.logger.Debug("automatic removal failed", "hook", r.ID(), "error", rerr)
		}
	}

	i.finish(span, err, labels, time.Since(start))
	return err
}

func (i *Interceptor) count(metric string, labels map[string]string) {
	if i.metrics != nil {
		i.metrics.IncrementCounter(metric, labels)
	}
}

func (i *Interceptor) startSpan(inv *objmodel.Invocation, labels map[string]string) SpanContext {
	if i.tracing == nil {
		return nil
	}
	_, span := i.tracing.StartSpan(invocationContext(inv), SpanDispatch, labels)
	return span
}

func (i *Interceptor) finish(span SpanContext, err error, labels map[string]string, d time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	if i.tracing != nil && span != nil {
		i.tracing.FinishSpan(span, status, nil)
	}
	if i.metrics != nil {
		final := map[string]string{"class": labels["class"], "selector": labels["selector"], "status": status}
		i.metrics.IncrementCounter(MetricDispatchTotal, final)
		i.metrics.RecordDuration(MetricDispatchDuration, d, final)
	}
}

// invocationContext uses the first argument as the span parent when it is a
// context.Context.
func invocationContext(inv *objmodel.Invocation) context.Context {
	if inv.NumArguments() > 0 {
		if ctx, ok := inv.Argument(0).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// info is the hook.Info handed to handlers. Arguments are boxed on first use.
type info struct {
	instance *objmodel.Object
	inv      *objmodel.Invocation

	once sync.Once
	args []any
}

func newInfo(instance *objmodel.Object, inv *objmodel.Invocation) *info {
	return &info{instance: instance, inv: inv}
}

func (in *info) Instance() *objmodel.Object { return in.instance }

func (in *info) Arguments() []any {
	in.once.Do(func() {
		in.args = in.inv.Arguments()
	})
	return in.args
}

func (in *info) OriginalInvocation() *objmodel.Invocation { return in.inv }

var _ hook.Info = (*info)(nil)
