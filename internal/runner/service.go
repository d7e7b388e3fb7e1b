// Package runner — сервис выполнения flow по имени.
//
// Service связывает источник определений (FlowSource) с controller:
// находит flow, запускает его и хранит снимок текущего и последнего run.
// Одновременно выполняется не более одного run; повторный Start во время
// выполнения возвращает controller.ErrRunInProgress.
//
// Снимки живут только в памяти процесса.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/controller"
	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/engine"
	"github.com/shaiso/avantix/internal/telemetry"
)

// ErrRunNotFound — run с таким id не выполняется.
var ErrRunNotFound = errors.New("run not found")

// Service запускает flow и отслеживает их состояние.
type Service struct {
	ctrl   *controller.Controller
	source FlowSource
	logger *slog.Logger

	mu      sync.Mutex
	current *domain.Run
	done    chan struct{}
	last    *domain.Run
}

// Config — конфигурация Service.
type Config struct {
	// Engine — engine с зарегистрированными action (обязателен).
	Engine *engine.Engine

	// Source — откуда брать определения flow (обязателен).
	Source FlowSource

	// Sink — дополнительный получатель событий (метрики, публикация в очередь).
	Sink engine.Sink

	// Logger
	Logger *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		source: cfg.Source,
		logger: logger,
	}
	s.ctrl = controller.New(controller.Config{
		Engine: cfg.Engine,
		Sink:   engine.NewMultiSink(engine.SinkFunc(s.track), cfg.Sink),
		Logger: logger,
	})
	return s
}

// Start находит flow по имени и запускает его.
//
// Run не привязан к отмене ctx: HTTP запрос или сообщение из очереди
// могут завершиться раньше run. Для остановки используется Cancel.
func (s *Service) Start(ctx context.Context, flowName string, trigger domain.RunTrigger) (*domain.Run, error) {
	if s.Busy() {
		return nil, controller.ErrRunInProgress
	}

	spec, err := s.source.Load(ctx, flowName)
	if err != nil {
		return nil, fmt.Errorf("load flow %q: %w", flowName, err)
	}

	run := &domain.Run{
		ID:         uuid.New(),
		FlowName:   flowName,
		Trigger:    trigger,
		Status:     domain.RunStatusNotStarted,
		StepsTotal: len(spec.Steps),
	}
	done := make(chan struct{})

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil, controller.ErrRunInProgress
	}
	s.current = run
	s.done = done
	s.mu.Unlock()

	if _, err := s.ctrl.StartWith(context.WithoutCancel(ctx), run.ID, spec); err != nil {
		s.mu.Lock()
		s.current = nil
		s.done = nil
		s.mu.Unlock()
		close(done)
		return nil, err
	}

	telemetry.WithFlow(telemetry.WithRunID(s.logger, run.ID.String()), flowName).
		Info("run accepted", "trigger", trigger)

	go s.await(run, done)

	return s.snapshot(run), nil
}

// await дожидается итога run и переносит его в last.
func (s *Service) await(run *domain.Run, done chan struct{}) {
	outcome := s.ctrl.Wait()

	s.mu.Lock()
	run.Finish(outcome)
	s.last = run
	s.current = nil
	s.done = nil
	s.mu.Unlock()
	close(done)

	telemetry.WithFlow(telemetry.WithRunID(s.logger, run.ID.String()), run.FlowName).Info("run finished",
		"status", outcome.Status,
		"step", outcome.StepIndex,
		"duration", run.Duration(),
	)
}

// track обновляет снимок текущего run по событиям engine.
func (s *Service) track(_ context.Context, ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.current
	if run == nil || run.ID.String() != ev.RunID {
		return
	}
	switch ev.Type {
	case domain.EventRunStarted:
		run.MarkRunning()
	case domain.EventStepStarted:
		run.StepIndex = ev.StepIndex
	}
}

// Cancel запрашивает отмену run. Текущий шаг доходит до конца.
func (s *Service) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	run := s.current
	if run == nil || run.ID != id {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run.CancelRequested = true
	s.mu.Unlock()

	s.ctrl.Cancel()
	return nil
}

// Wait блокируется до завершения текущего run или отмены ctx.
// Возвращает снимок последнего завершённого run.
func (s *Service) Wait(ctx context.Context) (*domain.Run, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	last := s.Last()
	if last == nil {
		return nil, ErrRunNotFound
	}
	return last, nil
}

// Busy возвращает true, если run выполняется.
func (s *Service) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Current возвращает снимок выполняющегося run или nil.
func (s *Service) Current() *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked(s.current)
}

// Last возвращает снимок последнего завершённого run или nil.
func (s *Service) Last() *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked(s.last)
}

// Get возвращает run по id, если это текущий или последний run.
func (s *Service) Get(id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range []*domain.Run{s.current, s.last} {
		if r != nil && r.ID == id {
			return s.copyLocked(r), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

func (s *Service) snapshot(run *domain.Run) *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked(run)
}

func (s *Service) copyLocked(run *domain.Run) *domain.Run {
	if run == nil {
		return nil
	}
	cp := *run
	return &cp
}
