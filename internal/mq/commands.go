package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/controller"
	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/runner"
)

// RunCommands — операции runner, доступные через очередь команд.
type RunCommands interface {
	Start(ctx context.Context, flowName string, trigger domain.RunTrigger) (*domain.Run, error)
	Cancel(id uuid.UUID) error
}

// NewCommandHandler создаёт Handler очереди runner.commands.
//
// Команда запуска во время выполняющегося run подтверждается и
// отбрасывается: очереди run нет. Неизвестный flow и некорректный
// payload уходят в DLQ.
func NewCommandHandler(runs RunCommands, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, d *Delivery) error {
		switch d.Message.Type {
		case MessageTypeRunStart:
			return handleRunStart(ctx, runs, logger, &d.Message)
		case MessageTypeRunCancel:
			return handleRunCancel(runs, logger, &d.Message)
		default:
			return fmt.Errorf("%w: unknown message type %q", ErrReject, d.Message.Type)
		}
	}
}

func handleRunStart(ctx context.Context, runs RunCommands, logger *slog.Logger, msg *Message) error {
	payload, err := ParsePayload[RunStartPayload](msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReject, err)
	}
	if payload.Flow == "" {
		return fmt.Errorf("%w: flow is required", ErrReject)
	}

	run, err := runs.Start(ctx, payload.Flow, domain.TriggerQueue)
	switch {
	case errors.Is(err, controller.ErrRunInProgress):
		logger.Warn("runner busy, dropping start command", "flow", payload.Flow, "message_id", msg.ID)
		return nil
	case errors.Is(err, runner.ErrFlowNotFound):
		return fmt.Errorf("%w: %v", ErrReject, err)
	case err != nil:
		return err
	}

	logger.Info("run started from queue", "run_id", run.ID, "flow", payload.Flow, "message_id", msg.ID)
	return nil
}

func handleRunCancel(runs RunCommands, logger *slog.Logger, msg *Message) error {
	payload, err := ParsePayload[RunCancelPayload](msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReject, err)
	}

	if err := runs.Cancel(payload.RunID); err != nil {
		if errors.Is(err, runner.ErrRunNotFound) {
			logger.Warn("cancel for inactive run ignored", "run_id", payload.RunID)
			return nil
		}
		return err
	}

	logger.Info("run cancellation requested from queue", "run_id", payload.RunID)
	return nil
}
