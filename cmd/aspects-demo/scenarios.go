package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/codysoyland/aspecthooks/pkg/aspects"
	"github.com/codysoyland/aspecthooks/pkg/hook"
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

type scenario struct {
	name  string
	short string
	run   func(w io.Writer, e *aspects.Engine) error
}

var scenarios = []scenario{
	{"after", "Log after area(animated) runs", runAfter},
	{"order", "Show class and instance hook ordering", runOrder},
	{"instead", "Replace area and call the original from the handler", runInstead},
	{"hierarchy", "Try to hook area at two levels of the hierarchy", runHierarchy},
	{"once", "Register a hook that removes itself after one call", runOnce},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range scenarios {
			fmt.Fprintf(cmd.OutOrStdout(), "== %s\n", s.name)
			if err := runScenario(cmd.OutOrStdout(), s); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
		}
		return nil
	},
}

func scenarioCommand(s scenario) *cobra.Command {
	return &cobra.Command{
		Use:   s.name,
		Short: s.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.OutOrStdout(), s)
		},
	}
}

// runScenario gives each scenario its own engine. Scenarios remove their hooks
// before returning since engines share what is hooked.
func runScenario(w io.Writer, s scenario) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	return s.run(w, e)
}

var (
	classesOnce sync.Once
	rectangle   *objmodel.Class
	square      *objmodel.Class
)

// shapes declares Rectangle and its subclass Square once per process.
func shapes() (*objmodel.Class, *objmodel.Class) {
	classesOnce.Do(func() {
		rectangle = objmodel.MustNewClass("Rectangle", nil).
			MustAddMethod("area", func(self *objmodel.Object, animated bool) float64 {
				width, _ := self.Associations().Load("width")
				height, _ := self.Associations().Load("height")
				return width.(float64) * height.(float64)
			})
		square = objmodel.MustNewClass("Square", rectangle)
	})
	return rectangle, square
}

func newShape(cls *objmodel.Class, width, height float64) *objmodel.Object {
	obj := cls.New()
	obj.Associations().Store("width", width)
	obj.Associations().Store("height", height)
	return obj
}

func area(w io.Writer, obj *objmodel.Object) error {
	got, err := obj.Send("area", true)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s.area(true) = %v\n", obj.Class().Name(), got)
	return nil
}

func runAfter(w io.Writer, e *aspects.Engine) error {
	rect, _ := shapes()
	obj := newShape(rect, 3, 4)

	tok, err := e.Hook(obj, "area", aspects.PositionAfter, func(info hook.Info, animated bool) {
		fmt.Fprintf(w, "  after area(animated=%v) on %s\n", animated, info.Instance().Class().Name())
	})
	if err != nil {
		return err
	}
	if err := area(w, obj); err != nil {
		return err
	}
	if err := tok.Remove(); err != nil {
		return err
	}
	fmt.Fprintln(w, "  hook removed")
	return area(w, obj)
}

func runOrder(w io.Writer, e *aspects.Engine) error {
	rect, _ := shapes()
	obj := newShape(rect, 2, 5)

	say := func(label string) func(hook.Info) {
		return func(hook.Info) { fmt.Fprintf(w, "  %s\n", label) }
	}
	hooks := []struct {
		target hook.Target
		opts   hook.Options
		label  string
	}{
		{obj, aspects.PositionAfter, "instance after"},
		{rect, aspects.PositionBefore, "class before"},
		{obj, aspects.PositionBefore, "instance before"},
		{rect, aspects.PositionAfter, "class after"},
	}

	var tokens []*aspects.Token
	defer func() {
		for _, tok := range tokens {
			_ = tok.Remove()
		}
	}()
	for _, h := range hooks {
		tok, err := e.Hook(h.target, "area", h.opts, say(h.label))
		if err != nil {
			return err
		}
		tokens = append(tokens, tok)
	}
	return area(w, obj)
}

func runInstead(w io.Writer, e *aspects.Engine) error {
	rect, _ := shapes()
	obj := newShape(rect, 6, 7)

	tok, err := e.Hook(obj, "area", aspects.PositionInstead, func(info hook.Info) {
		inv := info.OriginalInvocation()
		if err := inv.Invoke(); err != nil {
			fmt.Fprintf(w, "  instead: original failed: %v\n", err)
			return
		}
		original := inv.ReturnValue().(float64)
		fmt.Fprintf(w, "  instead: original returned %v, doubling\n", original)
		_ = inv.SetReturnValue(original * 2)
	})
	if err != nil {
		return err
	}
	defer func() { _ = tok.Remove() }()
	return area(w, obj)
}

func runHierarchy(w io.Writer, e *aspects.Engine) error {
	rect, sq := shapes()

	tok, err := e.Hook(rect, "area", aspects.PositionBefore, func(hook.Info) {})
	if err != nil {
		return err
	}
	defer func() { _ = tok.Remove() }()
	fmt.Fprintf(w, "  hooked %s.area\n", rect.Name())

	_, err = e.Hook(sq, "area", aspects.PositionBefore, func(hook.Info) {})
	var herr *aspects.HierarchyError
	if !errors.As(err, &herr) {
		return fmt.Errorf("expected a hierarchy error, got %v", err)
	}
	fmt.Fprintf(w, "  hooking %s.area rejected: already hooked in %s\n", herr.Class, herr.HookedIn)
	return nil
}

func runOnce(w io.Writer, e *aspects.Engine) error {
	_, sq := shapes()
	obj := newShape(sq, 5, 5)

	_, err := e.Hook(obj, "area", aspects.PositionBefore|aspects.OptionAutomaticRemoval, func(hook.Info) {
		fmt.Fprintln(w, "  first call only")
	})
	if err != nil {
		return err
	}
	for range 3 {
		if err := area(w, obj); err != nil {
			return err
		}
	}
	return nil
}
