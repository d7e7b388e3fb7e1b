package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/controller"
	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/engine"
	"github.com/shaiso/avantix/internal/loader"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mapSource — FlowSource поверх map.
type mapSource map[string]*domain.FlowSpec

func (m mapSource) Load(_ context.Context, name string) (*domain.FlowSpec, error) {
	spec, ok := m[name]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return spec, nil
}

// eventLog — потокобезопасный Sink для тестов.
type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) Emit(_ context.Context, ev domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []domain.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc     *Service
	events  *eventLog
	started chan struct{}
	release chan struct{}
}

// newFixture создаёт Service с action: noop, fail и block (ждёт release).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		events:  &eventLog{},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	reg := engine.NewRegistry()
	reg.RegisterFunc("noop", func(context.Context, *engine.ExecContext, map[string]any) error {
		return nil
	})
	reg.RegisterFunc("fail", func(context.Context, *engine.ExecContext, map[string]any) error {
		return errors.New("element not found")
	})
	reg.RegisterFunc("block", func(context.Context, *engine.ExecContext, map[string]any) error {
		f.started <- struct{}{}
		<-f.release
		return nil
	})

	src := mapSource{
		"ok":      {Name: "ok", Steps: []domain.StepDef{{Action: "noop"}, {Action: "noop"}}},
		"broken":  {Name: "broken", Steps: []domain.StepDef{{Action: "noop"}, {Action: "fail"}, {Action: "noop"}}},
		"long":    {Name: "long", Steps: []domain.StepDef{{Action: "block"}, {Action: "noop"}, {Action: "noop"}}},
		"badconf": {Name: "badconf", OnError: "retry", Steps: []domain.StepDef{{Action: "noop"}}},
	}

	f.svc = New(Config{
		Engine: engine.New(engine.Config{Registry: reg, Logger: quietLogger()}),
		Source: src,
		Sink:   f.events,
		Logger: quietLogger(),
	})
	return f
}

func waitRun(t *testing.T, svc *Service) *domain.Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := svc.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return run
}

func TestService_Completed(t *testing.T) {
	f := newFixture(t)

	run, err := f.svc.Start(context.Background(), "ok", domain.TriggerAPI)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if run.ID == uuid.Nil || run.FlowName != "ok" || run.StepsTotal != 2 || run.Trigger != domain.TriggerAPI {
		t.Errorf("unexpected run snapshot: %+v", run)
	}

	last := waitRun(t, f.svc)
	if last.ID != run.ID {
		t.Errorf("last.ID = %s, want %s", last.ID, run.ID)
	}
	if last.Status != domain.RunStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", last.Status)
	}
	if last.StartedAt == nil || last.FinishedAt == nil {
		t.Error("expected StartedAt and FinishedAt")
	}
	if f.svc.Busy() || f.svc.Current() != nil {
		t.Error("service must be idle after run")
	}

	types := f.events.types()
	if len(types) == 0 || types[len(types)-1] != domain.EventRunCompleted {
		t.Errorf("events = %v, want trailing run.completed", types)
	}
}

func TestService_Failed(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Start(context.Background(), "broken", domain.TriggerCLI); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	last := waitRun(t, f.svc)

	if last.Status != domain.RunStatusFailed || last.StepIndex != 2 {
		t.Errorf("got %s at %d, want FAILED at 2", last.Status, last.StepIndex)
	}
	if last.Error == "" {
		t.Error("expected error text")
	}
}

func TestService_ConfigurationError(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Start(context.Background(), "badconf", domain.TriggerCLI); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	last := waitRun(t, f.svc)

	if last.Status != domain.RunStatusFailed || last.StepIndex != 0 {
		t.Errorf("got %s at %d, want FAILED at 0", last.Status, last.StepIndex)
	}
	if last.StartedAt != nil {
		t.Error("rejected run must not be marked running")
	}
}

func TestService_FlowNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), "missing", domain.TriggerAPI)
	if !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Start() error = %v, want ErrFlowNotFound", err)
	}
	if f.svc.Busy() {
		t.Error("service must stay idle")
	}
}

func TestService_BusyAndCancel(t *testing.T) {
	f := newFixture(t)

	run, err := f.svc.Start(context.Background(), "long", domain.TriggerAPI)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-f.started

	cur := f.svc.Current()
	if cur == nil || cur.Status != domain.RunStatusRunning || cur.StepIndex != 1 {
		t.Fatalf("current = %+v, want RUNNING at step 1", cur)
	}

	if _, err := f.svc.Start(context.Background(), "ok", domain.TriggerSchedule); !errors.Is(err, controller.ErrRunInProgress) {
		t.Errorf("second Start() error = %v, want ErrRunInProgress", err)
	}

	if err := f.svc.Cancel(uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Cancel(unknown) error = %v, want ErrRunNotFound", err)
	}
	if err := f.svc.Cancel(run.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cur := f.svc.Current(); !cur.CancelRequested {
		t.Error("expected CancelRequested")
	}

	close(f.release)
	last := waitRun(t, f.svc)

	if last.Status != domain.RunStatusStopped || last.StepIndex != 2 {
		t.Errorf("got %s at %d, want STOPPED at 2", last.Status, last.StepIndex)
	}

	got, err := f.svc.Get(run.ID)
	if err != nil || got.ID != run.ID {
		t.Errorf("Get() = %v, %v", got, err)
	}
}

func TestService_RunOutlivesRequestContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := f.svc.Start(ctx, "long", domain.TriggerAPI); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-f.started
	cancel()
	close(f.release)

	last := waitRun(t, f.svc)
	if last.Status != domain.RunStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", last.Status)
	}
}

func TestService_WaitWithoutRun(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Wait(context.Background()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Wait() error = %v, want ErrRunNotFound", err)
	}
}

func TestChainSource(t *testing.T) {
	dir := t.TempDir()
	content := "name: from-dir\nsteps:\n  - action: print\n    params:\n      message: hi\n"
	if err := os.WriteFile(filepath.Join(dir, "disk.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	chain := ChainSource{
		mapSource{"mem": {Name: "from-map"}},
		DirSource{Loader: loader.New(dir)},
	}

	tests := []struct {
		name     string
		wantName string
		wantErr  error
	}{
		{"mem", "from-map", nil},
		{"disk", "from-dir", nil},
		{"nowhere", "", ErrFlowNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := chain.Load(context.Background(), tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if spec.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", spec.Name, tt.wantName)
			}
		})
	}
}

func TestDirSource_RejectsPaths(t *testing.T) {
	dir := t.TempDir()
	src := DirSource{Loader: loader.New(dir)}

	for _, name := range []string{"../secret", "/etc/passwd", "sub/flow", ".."} {
		if _, err := src.Load(context.Background(), name); !errors.Is(err, ErrFlowNotFound) {
			t.Errorf("Load(%q) error = %v, want ErrFlowNotFound", name, err)
		}
	}
}
