package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/avantix/internal/controller"
	"github.com/shaiso/avantix/internal/domain"
)

const defaultTickInterval = time.Second

// Starter запускает flow по имени. Реализуется runner.Service.
type Starter interface {
	Start(ctx context.Context, flowName string, trigger domain.RunTrigger) (*domain.Run, error)
}

// Scheduler — планировщик, запускающий flow по расписаниям.
//
// Расписания живут в памяти. Если runner занят в момент срабатывания,
// запуск пропускается и расписание сдвигается на следующее время:
// очереди и повторов нет.
type Scheduler struct {
	starter  Starter
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	schedules []domain.Schedule

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules []domain.Schedule
	Starter   Starter
	Logger    *slog.Logger
	Interval  time.Duration    // период тика (default: 1s)
	Now       func() time.Time // источник времени (default: time.Now)
}

// New создаёт Scheduler и вычисляет первое время запуска каждого расписания.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	schedules := make([]domain.Schedule, len(cfg.Schedules))
	copy(schedules, cfg.Schedules)

	start := now()
	for i := range schedules {
		s := &schedules[i]
		if err := Validate(s); err != nil {
			return nil, err
		}
		next, err := CalculateNextDue(s, start)
		if err != nil {
			return nil, err
		}
		s.NextDueAt = &next
	}

	return &Scheduler{
		starter:   cfg.Starter,
		logger:    logger,
		interval:  interval,
		now:       now,
		schedules: schedules,
	}, nil
}

// Start запускает цикл тиков в фоне.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.logger.Info("scheduler started", "schedules", len(s.schedules), "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop останавливает цикл и ждёт его завершения.
func (s *Scheduler) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Tick запускает все расписания, время которых наступило.
// Возвращает количество запущенных run.
//
// Ошибки одного расписания не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	started := 0
	for i := range s.schedules {
		sched := &s.schedules[i]
		if !sched.IsDue(now) {
			continue
		}
		if s.fire(ctx, sched, now) {
			started++
		}
	}
	return started
}

// fire запускает одно расписание. Возвращает true, если run создан.
func (s *Scheduler) fire(ctx context.Context, sched *domain.Schedule, now time.Time) bool {
	logger := s.logger.With("schedule", sched.Name, "flow", sched.Flow)

	next, err := CalculateNextDue(sched, now)
	if err != nil {
		// Расписание провалидировано в New, сюда попадать не должны
		logger.Error("failed to calculate next due, disabling schedule", "error", err)
		sched.Enabled = false
		return false
	}

	run, err := s.starter.Start(ctx, sched.Flow, domain.TriggerSchedule)
	switch {
	case errors.Is(err, controller.ErrRunInProgress):
		logger.Warn("runner busy, skipping scheduled run", "next_due_at", next)
		sched.Skip(next)
		return false
	case err != nil:
		logger.Error("scheduled run failed to start", "error", err, "next_due_at", next)
		sched.Skip(next)
		return false
	}

	logger.Info("scheduled run started", "run_id", run.ID, "next_due_at", next)
	sched.RecordRun(run.ID, next)
	return true
}

// Schedules возвращает снимок расписаний.
func (s *Scheduler) Schedules() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}

// SetEnabled включает или выключает расписание по имени.
// Возвращает false, если расписание не найдено.
func (s *Scheduler) SetEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.schedules {
		sched := &s.schedules[i]
		if sched.Name != name {
			continue
		}
		if enabled && !sched.Enabled {
			// При включении отсчёт начинается заново
			if next, err := CalculateNextDue(sched, s.now()); err == nil {
				sched.NextDueAt = &next
			}
		}
		sched.Enabled = enabled
		return true
	}
	return false
}
