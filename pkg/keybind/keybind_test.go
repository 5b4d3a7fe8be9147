package keybind

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
)

func TestParseBinding(t *testing.T) {
	cases := map[string]int{
		"F7":       118,
		"f7":       118,
		" F1 ":     112,
		"F12":      123,
		"A":        65,
		"z":        90,
		"0":        48,
		"9":        57,
		"esc":      CodeEscape,
		"Spacebar": CodeSpace,
		"PgUp":     CodePageUp,
		"`":        CodeBackquote,
		"":         0,
	}
	for in, want := range cases {
		got, err := ParseBinding(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %d, got %d", in, want, got)
		}
	}
}

func TestParseBindingRejectsUnknownKeys(t *testing.T) {
	for _, in := range []string{"F13", "F0", "ctrl+x", "??"} {
		if _, err := ParseBinding(in); !errors.Is(err, ErrUnknownKey) {
			t.Fatalf("%q: expected ErrUnknownKey, got %v", in, err)
		}
	}
}

func TestNameRoundTrip(t *testing.T) {
	for _, binding := range []string{"F7", "A", "5", "ESCAPE", "PAGEDOWN"} {
		code, err := ParseBinding(binding)
		if err != nil {
			t.Fatalf("%s: %v", binding, err)
		}
		name, ok := Name(code)
		if !ok || name != binding {
			t.Fatalf("%s: name of %d is %q", binding, code, name)
		}
	}
	if _, ok := Name(1000); ok {
		t.Fatal("unexpected name for unknown code")
	}
}

type countingToggler struct {
	calls int
	err   error
}

func (c *countingToggler) Toggle(context.Context) error {
	c.calls++
	return c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherTogglesOnBoundKey(t *testing.T) {
	target := &countingToggler{}
	w := NewWatcher(CodeF7, target, WithWatcherLogger(quietLogger()))
	b := bus.New()
	w.Attach(context.Background(), b)

	bus.Emit(b, events.Key, events.KeyDown{Code: CodeF7})
	bus.Emit(b, events.Key, events.KeyDown{Code: CodeA})
	if target.calls != 1 {
		t.Fatalf("expected one toggle, got %d", target.calls)
	}

	w.Detach()
	bus.Emit(b, events.Key, events.KeyDown{Code: CodeF7})
	if target.calls != 1 {
		t.Fatal("detached watcher must not toggle")
	}
}

func TestWatcherRespectsGuard(t *testing.T) {
	console, menu := false, false
	target := &countingToggler{}
	w := NewWatcher(CodeF7, target, WithGuard(GuardFuncs{
		Console: func() bool { return console },
		Menu:    func() bool { return menu },
	}))
	ctx := context.Background()

	console = true
	if w.Handle(ctx, events.KeyDown{Code: CodeF7}) {
		t.Fatal("open console must block the toggle")
	}
	console, menu = false, true
	if w.Handle(ctx, events.KeyDown{Code: CodeF7}) {
		t.Fatal("open menu must block the toggle")
	}
	menu = false
	if !w.Handle(ctx, events.KeyDown{Code: CodeF7}) {
		t.Fatal("expected toggle with console and menu closed")
	}
	if target.calls != 1 {
		t.Fatalf("expected one toggle, got %d", target.calls)
	}
}

func TestWatcherReportsToggleFailure(t *testing.T) {
	target := &countingToggler{err: errors.New("no surface")}
	w := NewWatcher(CodeF7, target, WithWatcherLogger(quietLogger()))
	if w.Handle(context.Background(), events.KeyDown{Code: CodeF7}) {
		t.Fatal("failed toggle must report false")
	}
	unbound := NewWatcher(0, target)
	if unbound.Handle(context.Background(), events.KeyDown{Code: 0}) {
		t.Fatal("unbound watcher must never toggle")
	}
}
