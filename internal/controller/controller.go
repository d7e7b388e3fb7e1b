// Package controller владеет жизненным циклом одного run за раз.
//
// Controller запускает engine в отдельной горутине, чтобы долгие action
// не блокировали вызывающего, создаёт CancelToken на каждый run и
// отдаёт поток событий и итог через каналы.
//
//	ctrl := controller.New(controller.Config{Engine: eng})
//	id, err := ctrl.Start(ctx, flow)
//	for ev := range ctrl.Events() { ... }
//	outcome := ctrl.Wait()
//
// Независимые Controller могут выполнять run одновременно с одним Engine.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/engine"
)

// Ошибки контроллера.
var (
	// ErrRunInProgress — у контроллера уже есть активный run.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrNoFlow — Start вызван без flow.
	ErrNoFlow = errors.New("flow is required")
)

// Controller запускает и отменяет run.
type Controller struct {
	engine *engine.Engine
	sink   engine.Sink
	logger *slog.Logger

	mu      sync.Mutex
	current *activeRun
}

// Config — конфигурация Controller.
type Config struct {
	// Engine — engine для выполнения flow (обязателен).
	Engine *engine.Engine

	// Sink — дополнительный получатель событий всех run контроллера.
	Sink engine.Sink

	// Logger
	Logger *slog.Logger
}

// activeRun — состояние run, запущенного контроллером.
type activeRun struct {
	id      uuid.UUID
	token   *engine.CancelToken
	events  *eventQueue
	done    chan struct{}
	outcome domain.Outcome
}

// New создаёт новый Controller.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eng := cfg.Engine
	if eng == nil {
		eng = engine.New(engine.Config{Logger: logger})
	}

	return &Controller{
		engine: eng,
		sink:   cfg.Sink,
		logger: logger,
	}
}

// Start запускает flow в новой горутине и возвращает id run.
//
// Отмена ctx устанавливает CancelToken run: выполняющийся шаг
// доходит до конца, следующий не запускается. Action получают ctx
// без отмены: значения и логгер сохраняются, но отмена run не
// прерывает шаг.
func (c *Controller) Start(ctx context.Context, flow *domain.FlowSpec) (uuid.UUID, error) {
	return c.StartWith(ctx, uuid.New(), flow)
}

// StartWith запускает flow с заданным id run.
func (c *Controller) StartWith(ctx context.Context, id uuid.UUID, flow *domain.FlowSpec) (uuid.UUID, error) {
	if flow == nil {
		return uuid.Nil, ErrNoFlow
	}

	c.mu.Lock()
	if c.current != nil && !c.current.finished() {
		c.mu.Unlock()
		return uuid.Nil, ErrRunInProgress
	}

	run := &activeRun{
		id:     id,
		token:  engine.NewCancelToken(),
		events: newEventQueue(),
		done:   make(chan struct{}),
	}
	c.current = run
	c.mu.Unlock()

	c.logger.Info("run starting", "run_id", id, "flow", flow.DisplayName())

	go func() {
		select {
		case <-ctx.Done():
			run.token.Cancel()
		case <-run.done:
		}
	}()

	go func() {
		outcome := c.engine.Execute(context.WithoutCancel(ctx), engine.Request{
			RunID: id.String(),
			Flow:  flow,
			Token: run.token,
			Sink:  engine.NewMultiSink(run.events, c.sink),
		})
		run.outcome = outcome
		run.events.close()
		close(run.done)
	}()

	return id, nil
}

// Cancel запрашивает отмену активного run.
// Возвращает false, если активного run нет.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	run := c.current
	c.mu.Unlock()

	if run == nil || run.finished() {
		return false
	}
	run.token.Cancel()
	c.logger.Info("run cancellation requested", "run_id", run.id)
	return true
}

// Wait блокируется до завершения текущего run и возвращает его итог.
// Если run не запускался, возвращает Outcome со статусом NOT_STARTED.
func (c *Controller) Wait() domain.Outcome {
	c.mu.Lock()
	run := c.current
	c.mu.Unlock()

	if run == nil {
		return domain.Outcome{Status: domain.RunStatusNotStarted}
	}
	<-run.done
	return run.outcome
}

// Done возвращает канал, закрываемый по завершении текущего run.
// nil, если run не запускался.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.done
}

// Events возвращает поток событий текущего run.
//
// Канал закрывается после терминального события. События не теряются
// и не блокируют engine, если читатель отстаёт.
func (c *Controller) Events() <-chan domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		ch := make(chan domain.Event)
		close(ch)
		return ch
	}
	return c.current.events.channel()
}

// Running возвращает true, если run выполняется.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && !c.current.finished()
}

// RunID возвращает id текущего или последнего run.
func (c *Controller) RunID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return uuid.Nil
	}
	return c.current.id
}

func (r *activeRun) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
