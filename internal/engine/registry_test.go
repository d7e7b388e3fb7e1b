package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type counterAction struct {
	calls int
}

func (a *counterAction) Execute(context.Context, *ExecContext, map[string]any) error {
	a.calls++
	return nil
}

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry()
	reg.Register("counter", func() Action { return &counterAction{} })

	a1, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, _ := reg.Get("counter")

	// Каждый вызов — новый экземпляр
	_ = a1.Execute(context.Background(), nil, nil)
	if a2.(*counterAction).calls != 0 {
		t.Error("expected independent action instances")
	}

	_, err = reg.Get("missing")
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestRegistry_IDs(t *testing.T) {
	reg := NewRegistry()
	noop := func(context.Context, *ExecContext, map[string]any) error { return nil }
	reg.RegisterFunc("wait", noop)
	reg.RegisterFunc("print", noop)
	reg.RegisterFunc("http.request", noop)

	ids := reg.IDs()
	expected := []string{"http.request", "print", "wait"}
	if len(ids) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, ids)
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, ids)
			break
		}
	}
	if reg.Count() != 3 {
		t.Errorf("expected count 3, got %d", reg.Count())
	}
	if !reg.Has("print") || reg.Has("click") {
		t.Error("unexpected Has result")
	}
}

func TestRegistry_ConcurrentLookups(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 10; i++ {
		reg.RegisterFunc(fmt.Sprintf("a%d", i), func(context.Context, *ExecContext, map[string]any) error { return nil })
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := reg.Get(fmt.Sprintf("a%d", n%10)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
}

func TestCancelToken(t *testing.T) {
	var nilToken *CancelToken
	if nilToken.Cancelled() {
		t.Error("nil token must never be cancelled")
	}

	token := NewCancelToken()
	if token.Cancelled() {
		t.Error("new token must not be cancelled")
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token.Cancel()
		}()
	}
	wg.Wait()

	if !token.Cancelled() {
		t.Error("expected token to be cancelled")
	}
}

func TestExecContext(t *testing.T) {
	ec := NewExecContext()
	ec.Set("b", 2)
	ec.Set("a", "one")

	if v, ok := ec.Get("b"); !ok || v != 2 {
		t.Errorf("expected 2, got %v", v)
	}
	if ec.GetString("a") != "one" {
		t.Errorf("expected one, got %q", ec.GetString("a"))
	}
	if ec.GetString("b") != "" {
		t.Error("expected empty string for non-string value")
	}

	keys := ec.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("expected sorted keys, got %v", keys)
	}

	snap := ec.Snapshot()
	ec.Delete("a")
	if _, ok := snap["a"]; !ok {
		t.Error("snapshot must not follow later changes")
	}
	if ec.Len() != 1 {
		t.Errorf("expected 1 value, got %d", ec.Len())
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("expected nil for nil error")
	}

	plain := Classify(errBoom)
	if plain.Kind != KindRecoverable || !errors.Is(plain, errBoom) {
		t.Errorf("expected recoverable wrapping errBoom, got %+v", plain)
	}

	fatal := Classify(Fatal("disk %s", "full"))
	if fatal.Kind != KindFatal || fatal.Error() != "disk full" {
		t.Errorf("unexpected fatal classification: %+v", fatal)
	}

	wrapped := Classify(fmt.Errorf("click: %w", Fatal("no display")))
	if wrapped.Kind != KindFatal {
		t.Errorf("expected fatal kind through wrapping, got %s", wrapped.Kind)
	}
	if wrapped.Error() != "click: no display" {
		t.Errorf("expected outer message, got %q", wrapped.Error())
	}

	untyped := Classify(&ActionError{Message: "x"})
	if untyped.Kind != KindRecoverable {
		t.Errorf("expected default recoverable kind, got %s", untyped.Kind)
	}
	if !errors.Is(untyped, ErrActionExecution) {
		t.Error("ActionError must match ErrActionExecution")
	}
}
