package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/avantix/internal/domain"
)

// Engine выполняет flow: шаги по порядку, политика ошибок, отмена между шагами.
//
// Engine не хранит состояние run и может использоваться несколькими
// контроллерами одновременно.
type Engine struct {
	registry *Registry
	sink     Sink
	logger   *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Registry — реестр action (обязателен).
	Registry *Registry

	// Sink — получатель событий. Если nil, события только логируются.
	Sink Sink

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Engine{
		registry: registry,
		sink:     sink,
		logger:   logger,
	}
}

// Registry возвращает реестр action engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Request — параметры одного run.
type Request struct {
	// RunID — идентификатор run для событий и логов.
	RunID string

	// Flow — определение flow. Engine не изменяет его.
	Flow *domain.FlowSpec

	// Token — флаг отмены. nil — run нельзя отменить.
	Token *CancelToken

	// Sink — дополнительный получатель событий этого run.
	Sink Sink
}

// run — состояние одного выполнения.
type run struct {
	id     string
	flow   *domain.FlowSpec
	sink   Sink
	logger *slog.Logger
}

// Run выполняет flow без RunID и дополнительного Sink.
func (e *Engine) Run(ctx context.Context, flow *domain.FlowSpec, token *CancelToken) domain.Outcome {
	return e.Execute(ctx, Request{Flow: flow, Token: token})
}

// Execute выполняет run и возвращает его итог.
//
// Алгоритм:
//  1. Валидация политик; ошибка → FAILED(0) до запуска шагов
//  2. Для каждого шага i: проверка отмены → STOPPED(i)
//  3. Поиск action; не найден → FAILED(i) при любой политике
//  4. Выполнение; ошибка → step.failed, затем stop → FAILED(i) или continue → следующий шаг
//  5. Все шаги пройдены → COMPLETED
//
// Ошибки action никогда не выходят за пределы Execute: всё сообщается
// через Outcome и события.
func (e *Engine) Execute(ctx context.Context, req Request) domain.Outcome {
	r := &run{
		id:     req.RunID,
		sink:   NewMultiSink(e.sink, req.Sink),
		logger: e.logger,
	}
	if req.RunID != "" {
		r.logger = r.logger.With("run_id", req.RunID)
	}

	flow, err := Normalize(req.Flow)
	if err != nil {
		name := ""
		if req.Flow != nil {
			name = req.Flow.DisplayName()
		}
		r.flow = &domain.FlowSpec{Name: name}
		r.logger.Error("flow rejected", "flow", name, "error", err)
		r.emit(ctx, domain.Event{Type: domain.EventRunFailed, Message: err.Error()})
		return domain.Failed(0, err)
	}
	r.flow = flow

	ec := NewExecContext()

	r.logger.Info("flow started",
		"flow", flow.DisplayName(),
		"on_error", flow.OnError,
		"steps", len(flow.Steps),
	)
	r.emit(ctx, domain.Event{Type: domain.EventRunStarted, Policy: flow.OnError})

	for i := range flow.Steps {
		index := i + 1
		step := &flow.Steps[i]

		// Отмена проверяется только на границе шагов
		if req.Token.Cancelled() {
			r.logger.Info("flow stopped", "flow", flow.DisplayName(), "step", index)
			r.emit(ctx, domain.Event{
				Type:      domain.EventRunStopped,
				StepIndex: index,
				ActionID:  step.Action,
				Message:   "cancellation requested",
			})
			return domain.Stopped(index)
		}

		policy := EffectivePolicy(flow.OnError, step)

		if outcome, done := e.runStep(ctx, r, ec, index, step, policy); done {
			return outcome
		}
	}

	r.logger.Info("flow finished", "flow", flow.DisplayName())
	r.emit(ctx, domain.Event{Type: domain.EventRunCompleted})
	return domain.Completed()
}

// runStep выполняет один шаг. done=true означает, что run завершён с outcome.
func (e *Engine) runStep(ctx context.Context, r *run, ec *ExecContext, index int, step *domain.StepDef, policy domain.ErrorPolicy) (domain.Outcome, bool) {
	logger := r.logger.With("step", index, "action", step.Action, "on_error", policy)
	logger.Debug("step started")
	r.emit(ctx, domain.Event{
		Type:      domain.EventStepStarted,
		StepIndex: index,
		ActionID:  step.Action,
		Policy:    policy,
	})

	action, err := e.registry.Get(step.Action)
	if err != nil {
		// Несоответствие flow и реестра — структурная ошибка, continue не применяется
		stepErr := &StepError{Index: index, ActionID: step.Action, Err: err}
		logger.Error("step failed", "error", err)
		r.emit(ctx, domain.Event{
			Type:      domain.EventStepFailed,
			StepIndex: index,
			ActionID:  step.Action,
			Policy:    policy,
			Message:   err.Error(),
		})
		r.emit(ctx, domain.Event{
			Type:      domain.EventRunFailed,
			StepIndex: index,
			ActionID:  step.Action,
			Message:   stepErr.Error(),
		})
		return domain.Failed(index, stepErr), true
	}

	params := step.Params
	if params == nil {
		params = map[string]any{}
	}

	start := time.Now()
	execErr := invoke(ctx, action, ec, params)
	elapsed := time.Since(start)

	if execErr == nil {
		logger.Info("step completed", "duration", elapsed)
		r.emit(ctx, domain.Event{
			Type:      domain.EventStepSucceeded,
			StepIndex: index,
			ActionID:  step.Action,
			Policy:    policy,
			Duration:  elapsed,
		})
		return domain.Outcome{}, false
	}

	actionErr := Classify(execErr)

	// Ошибка логируется до применения политики, даже при continue
	logger.Warn("step failed", "error", actionErr, "kind", actionErr.Kind, "duration", elapsed)
	r.emit(ctx, domain.Event{
		Type:      domain.EventStepFailed,
		StepIndex: index,
		ActionID:  step.Action,
		Policy:    policy,
		Message:   actionErr.Error(),
		Duration:  elapsed,
	})

	if policy == domain.PolicyContinue && actionErr.Kind != KindFatal {
		return domain.Outcome{}, false
	}

	stepErr := &StepError{Index: index, ActionID: step.Action, Err: actionErr}
	r.logger.Error("flow failed", "flow", r.flow.DisplayName(), "step", index, "error", actionErr)
	r.emit(ctx, domain.Event{
		Type:      domain.EventRunFailed,
		StepIndex: index,
		ActionID:  step.Action,
		Message:   stepErr.Error(),
	})
	return domain.Failed(index, stepErr), true
}

// invoke вызывает action и превращает панику в ошибку.
func invoke(ctx context.Context, action Action, ec *ExecContext, params map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ActionError{
				Kind:    KindRecoverable,
				Message: fmt.Sprintf("%v", rec),
				Err:     ErrActionPanic,
			}
		}
	}()
	return action.Execute(ctx, ec, params)
}

// emit дополняет событие общими полями и передаёт в sink.
func (r *run) emit(ctx context.Context, ev domain.Event) {
	ev.RunID = r.id
	ev.FlowName = r.flow.Name
	ev.Timestamp = time.Now()
	r.sink.Emit(ctx, ev)
}
