package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/controller"
	"github.com/shaiso/avantix/internal/domain"
)

// fakeStarter — тестовая реализация Starter.
type fakeStarter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeStarter) Start(_ context.Context, flowName string, trigger domain.RunTrigger) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, flowName)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Run{ID: uuid.New(), FlowName: flowName, Trigger: trigger, Status: domain.RunStatusRunning}, nil
}

func (f *fakeStarter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeClock — управляемый источник времени.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCalculateNextDue(t *testing.T) {
	from := time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		sched domain.Schedule
		want  time.Time
	}{
		{
			name:  "cron daily",
			sched: domain.Schedule{CronExpr: "0 9 * * *"},
			want:  time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "cron every 5 minutes",
			sched: domain.Schedule{CronExpr: "*/5 * * * *"},
			want:  time.Date(2026, 1, 15, 8, 35, 0, 0, time.UTC),
		},
		{
			name:  "cron with timezone",
			sched: domain.Schedule{CronExpr: "0 12 * * *", Timezone: "Europe/Moscow"},
			// 08:30 UTC = 11:30 MSK, следующий 12:00 MSK = 09:00 UTC
			want: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "interval",
			sched: domain.Schedule{IntervalSec: 300},
			want:  time.Date(2026, 1, 15, 8, 35, 0, 0, time.UTC),
		},
		{
			name:  "invalid timezone falls back to UTC",
			sched: domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Mars/Olympus"},
			want:  time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateNextDue(&tt.sched, from)
			if err != nil {
				t.Fatalf("CalculateNextDue() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("CalculateNextDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateNextDue_NoTrigger(t *testing.T) {
	_, err := CalculateNextDue(&domain.Schedule{}, time.Now())
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("error = %v, want ErrInvalidSchedule", err)
	}
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 9 * * *", false},
		{"*/5 * * * *", false},
		{"0 9 * * 1-5", false},
		{"0 9 * *", true},
		{"61 * * * *", true},
		{"not a cron", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCronExpr(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
schedules:
  - name: morning
    flow: daily_report
    cron: "0 9 * * 1-5"
    timezone: Europe/Moscow
  - name: heartbeat
    flow: ping
    interval_sec: 60
    enabled: false
  - flow: cleanup
    interval_sec: 3600
`)

	schedules, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(schedules) != 3 {
		t.Fatalf("len(schedules) = %d, want 3", len(schedules))
	}

	if s := schedules[0]; s.Name != "morning" || s.CronExpr != "0 9 * * 1-5" || !s.Enabled || s.Timezone != "Europe/Moscow" {
		t.Errorf("schedules[0] = %+v", s)
	}
	if s := schedules[1]; s.Enabled || s.IntervalSec != 60 {
		t.Errorf("schedules[1] = %+v, want disabled interval 60", s)
	}
	if s := schedules[2]; s.Name != "schedule-3" || !s.Enabled {
		t.Errorf("schedules[2] = %+v, want default name and enabled", s)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no flow", "schedules:\n  - name: a\n    interval_sec: 10\n"},
		{"no trigger", "schedules:\n  - name: a\n    flow: f\n"},
		{"bad cron", "schedules:\n  - name: a\n    flow: f\n    cron: \"bad\"\n"},
		{"bad timezone", "schedules:\n  - name: a\n    flow: f\n    interval_sec: 10\n    timezone: Nowhere/City\n"},
		{"duplicate", "schedules:\n  - name: a\n    flow: f\n    interval_sec: 10\n  - name: a\n    flow: g\n    interval_sec: 10\n"},
		{"not yaml", "schedules: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("Parse() error = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func newTestScheduler(t *testing.T, starter Starter, clock *fakeClock, schedules ...domain.Schedule) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Schedules: schedules,
		Starter:   starter,
		Now:       clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestScheduler_Tick(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
	starter := &fakeStarter{}

	s := newTestScheduler(t, starter, clock,
		domain.Schedule{Name: "fast", Flow: "ping", IntervalSec: 60, Enabled: true},
		domain.Schedule{Name: "slow", Flow: "report", IntervalSec: 600, Enabled: true},
		domain.Schedule{Name: "off", Flow: "never", IntervalSec: 60, Enabled: false},
	)

	// Время ещё не наступило
	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("Tick() = %d, want 0", n)
	}

	clock.Advance(61 * time.Second)
	if n := s.Tick(context.Background()); n != 1 {
		t.Fatalf("Tick() = %d, want 1", n)
	}
	if calls := starter.Calls(); len(calls) != 1 || calls[0] != "ping" {
		t.Errorf("calls = %v, want [ping]", calls)
	}

	snap := s.Schedules()
	if snap[0].LastRunID == nil || snap[0].LastRunAt == nil {
		t.Error("fast schedule should record last run")
	}
	wantNext := clock.Now().Add(60 * time.Second)
	if !snap[0].NextDueAt.Equal(wantNext) {
		t.Errorf("NextDueAt = %v, want %v", snap[0].NextDueAt, wantNext)
	}

	// Повторный тик в то же время ничего не запускает
	if n := s.Tick(context.Background()); n != 0 {
		t.Errorf("second Tick() = %d, want 0", n)
	}
}

func TestScheduler_Tick_RunnerBusy(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
	starter := &fakeStarter{err: fmt.Errorf("start: %w", controller.ErrRunInProgress)}

	s := newTestScheduler(t, starter, clock,
		domain.Schedule{Name: "busy", Flow: "ping", IntervalSec: 30, Enabled: true},
	)

	clock.Advance(30 * time.Second)
	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("Tick() = %d, want 0", n)
	}

	snap := s.Schedules()[0]
	if snap.LastRunID != nil {
		t.Error("skipped schedule should not record run")
	}
	wantNext := clock.Now().Add(30 * time.Second)
	if !snap.NextDueAt.Equal(wantNext) {
		t.Errorf("NextDueAt = %v, want %v", snap.NextDueAt, wantNext)
	}

	// Пропущенный запуск не повторяется на следующем тике
	if n := s.Tick(context.Background()); n != 0 {
		t.Errorf("Tick() after skip = %d, want 0", n)
	}
	if calls := starter.Calls(); len(calls) != 1 {
		t.Errorf("calls = %d, want 1", len(calls))
	}
}

func TestScheduler_Tick_StartError(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
	starter := &fakeStarter{err: errors.New("flow not found")}

	s := newTestScheduler(t, starter, clock,
		domain.Schedule{Name: "broken", Flow: "missing", IntervalSec: 10, Enabled: true},
	)

	clock.Advance(10 * time.Second)
	s.Tick(context.Background())

	snap := s.Schedules()[0]
	if !snap.Enabled {
		t.Error("schedule should stay enabled after start error")
	}
	if !snap.NextDueAt.After(clock.Now()) {
		t.Errorf("NextDueAt = %v, want after %v", snap.NextDueAt, clock.Now())
	}
}

func TestScheduler_SetEnabled(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
	starter := &fakeStarter{}

	s := newTestScheduler(t, starter, clock,
		domain.Schedule{Name: "job", Flow: "ping", IntervalSec: 60, Enabled: false},
	)

	clock.Advance(5 * time.Minute)
	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("disabled Tick() = %d, want 0", n)
	}

	if !s.SetEnabled("job", true) {
		t.Fatal("SetEnabled() = false, want true")
	}
	// Отсчёт начинается с момента включения
	if n := s.Tick(context.Background()); n != 0 {
		t.Errorf("Tick() right after enable = %d, want 0", n)
	}
	clock.Advance(60 * time.Second)
	if n := s.Tick(context.Background()); n != 1 {
		t.Errorf("Tick() = %d, want 1", n)
	}

	if s.SetEnabled("unknown", true) {
		t.Error("SetEnabled(unknown) = true, want false")
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{
		Schedules: []domain.Schedule{{Name: "bad", Flow: "x", CronExpr: "nope", Enabled: true}},
		Starter:   &fakeStarter{},
	})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("New() error = %v, want ErrInvalidSchedule", err)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	starter := &fakeStarter{}
	s, err := New(Config{
		Schedules: []domain.Schedule{{Name: "tick", Flow: "ping", IntervalSec: 1, Enabled: true}},
		Starter:   starter,
		Interval:  10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.Start(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for len(starter.Calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if len(starter.Calls()) == 0 {
		t.Error("scheduler loop did not start any run")
	}
}
