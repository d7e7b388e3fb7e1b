package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shaiso/avantix/internal/domain"
)

// recorder собирает события и вызовы action.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	calls  []string
}

func (r *recorder) Emit(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) call(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(t domain.EventType) int {
	n := 0
	for _, et := range r.types() {
		if et == t {
			n++
		}
	}
	return n
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var errBoom = errors.New("boom")

// newTestEngine создаёт engine с тестовыми action: print, fail, fatal, panic.
func newTestEngine(rec *recorder) *Engine {
	reg := NewRegistry()
	reg.RegisterFunc("print", func(_ context.Context, _ *ExecContext, params map[string]any) error {
		rec.call(fmt.Sprintf("print %v", params["message"]))
		return nil
	})
	reg.RegisterFunc("fail", func(context.Context, *ExecContext, map[string]any) error {
		rec.call("fail")
		return errBoom
	})
	reg.RegisterFunc("fatal", func(context.Context, *ExecContext, map[string]any) error {
		rec.call("fatal")
		return Fatal("device lost")
	})
	reg.RegisterFunc("panic", func(context.Context, *ExecContext, map[string]any) error {
		rec.call("panic")
		panic("unexpected state")
	})

	return New(Config{
		Registry: reg,
		Sink:     rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func printStep(msg string) domain.StepDef {
	return domain.StepDef{Action: "print", Params: map[string]any{"message": msg}}
}

func assertTypes(t *testing.T, got, want []domain.EventType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}
}

func TestEngine_EmptyFlow(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	outcome := e.Run(context.Background(), &domain.FlowSpec{Name: "empty"}, NewCancelToken())

	if outcome.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", outcome.Status)
	}
	assertTypes(t, rec.types(), []domain.EventType{
		domain.EventRunStarted,
		domain.EventRunCompleted,
	})
}

func TestEngine_AllSucceed(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	flow := &domain.FlowSpec{
		Name:  "all",
		Steps: []domain.StepDef{printStep("a"), printStep("b"), printStep("c")},
	}

	outcome := e.Run(context.Background(), flow, NewCancelToken())

	if outcome.Status != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", outcome.Status)
	}

	succeeded := rec.ofType(domain.EventStepSucceeded)
	if len(succeeded) != 3 {
		t.Fatalf("expected 3 step.succeeded events, got %d", len(succeeded))
	}
	for i, ev := range succeeded {
		if ev.StepIndex != i+1 {
			t.Errorf("event %d: expected step index %d, got %d", i, i+1, ev.StepIndex)
		}
		if ev.ActionID != "print" {
			t.Errorf("event %d: expected action print, got %q", i, ev.ActionID)
		}
		if ev.FlowName != "all" {
			t.Errorf("event %d: expected flow name, got %q", i, ev.FlowName)
		}
	}
}

func TestEngine_ScenarioA_StopAllSucceed(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	flow := &domain.FlowSpec{
		Name:    "A",
		OnError: domain.PolicyStop,
		Steps:   []domain.StepDef{printStep("a"), printStep("b")},
	}

	outcome := e.Execute(context.Background(), Request{Flow: flow, Token: NewCancelToken()})

	if outcome.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", outcome.Status)
	}
	if n := rec.count(domain.EventStepSucceeded); n != 2 {
		t.Errorf("expected 2 step.succeeded events, got %d", n)
	}
	assertTypes(t, rec.types(), []domain.EventType{
		domain.EventRunStarted,
		domain.EventStepStarted,
		domain.EventStepSucceeded,
		domain.EventStepStarted,
		domain.EventStepSucceeded,
		domain.EventRunCompleted,
	})
}

func TestEngine_ScenarioB_ContinueAfterFailure(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	flow := &domain.FlowSpec{
		Name:    "B",
		OnError: domain.PolicyContinue,
		Steps:   []domain.StepDef{{Action: "fail"}, printStep("b")},
	}

	outcome := e.Run(context.Background(), flow, NewCancelToken())

	if outcome.Status != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", outcome.Status, outcome.Err)
	}

	failed := rec.ofType(domain.EventStepFailed)
	if len(failed) != 1 || failed[0].StepIndex != 1 {
		t.Fatalf("expected step.failed at 1, got %+v", failed)
	}
	if failed[0].Message != "boom" {
		t.Errorf("expected message boom, got %q", failed[0].Message)
	}
	if failed[0].Policy != domain.PolicyContinue {
		t.Errorf("expected continue policy on event, got %q", failed[0].Policy)
	}

	succeeded := rec.ofType(domain.EventStepSucceeded)
	if len(succeeded) != 1 || succeeded[0].StepIndex != 2 {
		t.Errorf("expected step.succeeded at 2, got %+v", succeeded)
	}
}

func TestEngine_ScenarioC_StopOnFailure(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	flow := &domain.FlowSpec{
		Name:    "C",
		OnError: domain.PolicyStop,
		Steps:   []domain.StepDef{{Action: "fail"}, printStep("b")},
	}

	outcome := e.Run(context.Background(), flow, NewCancelToken())

	if outcome.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED, got %s", outcome.Status)
	}
	if outcome.StepIndex != 1 {
		t.Errorf("expected step index 1, got %d", outcome.StepIndex)
	}
	if !errors.Is(outcome.Err, errBoom) {
		t.Errorf("expected cause to be preserved, got %v", outcome.Err)
	}
	if !errors.Is(outcome.Err, ErrActionExecution) {
		t.Errorf("expected ErrActionExecution, got %v", outcome.Err)
	}

	var stepErr *StepError
	if !errors.As(outcome.Err, &stepErr) || stepErr.Index != 1 || stepErr.ActionID != "fail" {
		t.Errorf("expected StepError for step 1, got %v", outcome.Err)
	}

	if len(rec.calls) != 1 || rec.calls[0] != "fail" {
		t.Errorf("expected only fail to run, got %v", rec.calls)
	}
	assertTypes(t, rec.types(), []domain.EventType{
		domain.EventRunStarted,
		domain.EventStepStarted,
		domain.EventStepFailed,
		domain.EventRunFailed,
	})
}

func TestEngine_ScenarioD_CancelDuringStep(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	started := make(chan struct{})
	release := make(chan struct{})
	e.Registry().RegisterFunc("slow", func(context.Context, *ExecContext, map[string]any) error {
		close(started)
		<-release
		rec.call("slow")
		return nil
	})

	flow := &domain.FlowSpec{
		Name:  "D",
		Steps: []domain.StepDef{{Action: "slow"}, printStep("b")},
	}

	token := NewCancelToken()
	done := make(chan domain.Outcome, 1)
	go func() {
		done <- e.Run(context.Background(), flow, token)
	}()

	<-started
	token.Cancel()
	close(release)
	outcome := <-done

	if outcome.Status != domain.RunStatusStopped {
		t.Fatalf("expected STOPPED, got %s", outcome.Status)
	}
	if outcome.StepIndex != 2 {
		t.Errorf("expected step index 2, got %d", outcome.StepIndex)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "slow" {
		t.Errorf("expected only slow to run, got %v", rec.calls)
	}
	assertTypes(t, rec.types(), []domain.EventType{
		domain.EventRunStarted,
		domain.EventStepStarted,
		domain.EventStepSucceeded,
		domain.EventRunStopped,
	})

	stopped := rec.ofType(domain.EventRunStopped)
	if stopped[0].StepIndex != 2 {
		t.Errorf("expected run.stopped at 2, got %d", stopped[0].StepIndex)
	}
}

func TestEngine_CancelBeforeStart(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	token := NewCancelToken()
	token.Cancel()
	token.Cancel()

	flow := &domain.FlowSpec{Steps: []domain.StepDef{printStep("a")}}
	outcome := e.Run(context.Background(), flow, token)

	if outcome.Status != domain.RunStatusStopped || outcome.StepIndex != 1 {
		t.Errorf("expected STOPPED at 1, got %s at %d", outcome.Status, outcome.StepIndex)
	}
	if len(rec.calls) != 0 {
		t.Errorf("expected no dispatch, got %v", rec.calls)
	}
}

func TestEngine_CancelAfterLastStepStarted(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	token := NewCancelToken()
	e.Registry().RegisterFunc("last", func(context.Context, *ExecContext, map[string]any) error {
		token.Cancel()
		return nil
	})

	flow := &domain.FlowSpec{Steps: []domain.StepDef{printStep("a"), {Action: "last"}}}
	outcome := e.Run(context.Background(), flow, token)

	if outcome.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", outcome.Status)
	}
}

func TestEngine_UnknownActionIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		flow   domain.ErrorPolicy
		step   domain.ErrorPolicy
		action string
	}{
		{"flow continue", domain.PolicyContinue, "", "missing"},
		{"step continue", domain.PolicyStop, domain.PolicyContinue, "missing"},
		{"empty action id", domain.PolicyContinue, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			e := newTestEngine(rec)

			flow := &domain.FlowSpec{
				OnError: tt.flow,
				Steps: []domain.StepDef{
					printStep("a"),
					{Action: tt.action, OnError: tt.step},
					printStep("c"),
				},
			}

			outcome := e.Run(context.Background(), flow, NewCancelToken())

			if outcome.Status != domain.RunStatusFailed || outcome.StepIndex != 2 {
				t.Fatalf("expected FAILED at 2, got %s at %d", outcome.Status, outcome.StepIndex)
			}
			if !errors.Is(outcome.Err, ErrUnknownAction) {
				t.Errorf("expected ErrUnknownAction, got %v", outcome.Err)
			}
			if len(rec.calls) != 1 {
				t.Errorf("expected only first step to run, got %v", rec.calls)
			}
			assertTypes(t, rec.types(), []domain.EventType{
				domain.EventRunStarted,
				domain.EventStepStarted,
				domain.EventStepSucceeded,
				domain.EventStepStarted,
				domain.EventStepFailed,
				domain.EventRunFailed,
			})
		})
	}
}

func TestEngine_StepOverride(t *testing.T) {
	t.Run("step continue under flow stop", func(t *testing.T) {
		rec := &recorder{}
		e := newTestEngine(rec)

		flow := &domain.FlowSpec{
			OnError: domain.PolicyStop,
			Steps: []domain.StepDef{
				{Action: "fail", OnError: domain.PolicyContinue},
				printStep("b"),
			},
		}

		outcome := e.Run(context.Background(), flow, NewCancelToken())
		if outcome.Status != domain.RunStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", outcome.Status)
		}
	})

	t.Run("legacy continue_on_error", func(t *testing.T) {
		rec := &recorder{}
		e := newTestEngine(rec)

		flow := &domain.FlowSpec{
			Steps: []domain.StepDef{
				{Action: "fail", ContinueOnError: true},
				printStep("b"),
			},
		}

		outcome := e.Run(context.Background(), flow, NewCancelToken())
		if outcome.Status != domain.RunStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", outcome.Status)
		}
	})

	t.Run("step stop under flow continue", func(t *testing.T) {
		rec := &recorder{}
		e := newTestEngine(rec)

		flow := &domain.FlowSpec{
			OnError: domain.PolicyContinue,
			Steps: []domain.StepDef{
				printStep("a"),
				{Action: "fail"},
				{Action: "fail", OnError: domain.PolicyStop},
				printStep("d"),
			},
		}

		outcome := e.Run(context.Background(), flow, NewCancelToken())
		if outcome.Status != domain.RunStatusFailed || outcome.StepIndex != 3 {
			t.Errorf("expected FAILED at 3, got %s at %d", outcome.Status, outcome.StepIndex)
		}
		if n := rec.count(domain.EventStepFailed); n != 2 {
			t.Errorf("expected 2 step.failed events, got %d", n)
		}
	})
}

func TestEngine_FatalErrorIgnoresContinue(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	flow := &domain.FlowSpec{
		OnError: domain.PolicyContinue,
		Steps:   []domain.StepDef{{Action: "fatal"}, printStep("b")},
	}

	outcome := e.Run(context.Background(), flow, NewCancelToken())

	if outcome.Status != domain.RunStatusFailed || outcome.StepIndex != 1 {
		t.Fatalf("expected FAILED at 1, got %s at %d", outcome.Status, outcome.StepIndex)
	}

	var actionErr *ActionError
	if !errors.As(outcome.Err, &actionErr) || actionErr.Kind != KindFatal {
		t.Errorf("expected fatal ActionError, got %v", outcome.Err)
	}
}

func TestEngine_PanicIsRecovered(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	flow := &domain.FlowSpec{
		OnError: domain.PolicyContinue,
		Steps:   []domain.StepDef{{Action: "panic"}, printStep("b")},
	}

	outcome := e.Run(context.Background(), flow, NewCancelToken())

	if outcome.Status != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", outcome.Status)
	}
	failed := rec.ofType(domain.EventStepFailed)
	if len(failed) != 1 || failed[0].Message != "unexpected state: action panicked" {
		t.Errorf("unexpected step.failed events: %+v", failed)
	}

	// Под stop паника завершает run
	rec = &recorder{}
	e = newTestEngine(rec)
	flow.OnError = domain.PolicyStop
	outcome = e.Run(context.Background(), flow, NewCancelToken())
	if !errors.Is(outcome.Err, ErrActionPanic) {
		t.Errorf("expected ErrActionPanic, got %v", outcome.Err)
	}
}

func TestEngine_ConfigurationError(t *testing.T) {
	tests := []struct {
		name string
		flow *domain.FlowSpec
	}{
		{"nil flow", nil},
		{"invalid flow policy", &domain.FlowSpec{OnError: "retry", Steps: []domain.StepDef{printStep("a")}}},
		{"invalid step policy", &domain.FlowSpec{Steps: []domain.StepDef{printStep("a"), {Action: "print", OnError: "skip"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			e := newTestEngine(rec)

			outcome := e.Run(context.Background(), tt.flow, NewCancelToken())

			if outcome.Status != domain.RunStatusFailed || outcome.StepIndex != 0 {
				t.Errorf("expected FAILED at 0, got %s at %d", outcome.Status, outcome.StepIndex)
			}
			if !errors.Is(outcome.Err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", outcome.Err)
			}
			if len(rec.calls) != 0 {
				t.Errorf("expected no dispatch, got %v", rec.calls)
			}
			assertTypes(t, rec.types(), []domain.EventType{domain.EventRunFailed})
		})
	}
}

func TestEngine_ContextSharedBetweenSteps(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	e.Registry().RegisterFunc("set", func(_ context.Context, ec *ExecContext, _ map[string]any) error {
		ec.Set("token", "abc")
		return nil
	})

	var seen string
	e.Registry().RegisterFunc("read", func(_ context.Context, ec *ExecContext, _ map[string]any) error {
		seen = ec.GetString("token")
		return nil
	})

	flow := &domain.FlowSpec{Steps: []domain.StepDef{{Action: "set"}, {Action: "read"}}}
	outcome := e.Run(context.Background(), flow, nil)

	if outcome.Status != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", outcome.Status)
	}
	if seen != "abc" {
		t.Errorf("expected value from previous step, got %q", seen)
	}
}

func TestEngine_RequestSinkAndRunID(t *testing.T) {
	global := &recorder{}
	e := newTestEngine(global)

	local := make(chan domain.Event, 16)
	outcome := e.Execute(context.Background(), Request{
		RunID: "run-1",
		Flow:  &domain.FlowSpec{Name: "ids", Steps: []domain.StepDef{printStep("a")}},
		Sink:  chanSink(local),
	})
	close(local)

	if outcome.Status != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", outcome.Status)
	}

	n := 0
	for ev := range local {
		n++
		if ev.RunID != "run-1" {
			t.Errorf("expected run id on %s, got %q", ev.Type, ev.RunID)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("expected timestamp on %s", ev.Type)
		}
	}
	if n != len(global.types()) {
		t.Errorf("expected both sinks to see %d events, local got %d", len(global.types()), n)
	}
}

func TestEngine_RunStartedCarriesPolicy(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(rec)

	e.Run(context.Background(), &domain.FlowSpec{Name: "p"}, nil)

	started := rec.ofType(domain.EventRunStarted)
	if len(started) != 1 || started[0].Policy != domain.PolicyStop {
		t.Errorf("expected run.started with stop policy, got %+v", started)
	}
}

// chanSink пишет события в канал с достаточным буфером.
type chanSink chan<- domain.Event

func (c chanSink) Emit(_ context.Context, ev domain.Event) {
	c <- ev
}
