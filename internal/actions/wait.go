package actions

import (
	"context"
	"time"

	"github.com/shaiso/avantix/internal/engine"
)

const (
	// ActionWait — пауза.
	ActionWait = "wait"

	defaultWaitSeconds = 1.0
)

// WaitAction приостанавливает выполнение на заданное время.
//
// Параметры:
//
//	{"seconds": 1.5}   // по умолчанию 1
//
// Пауза прерывается при отмене ctx процесса. Отмена run через
// CancelToken паузу не прерывает: она наблюдается только между шагами.
type WaitAction struct{}

// Execute выполняет паузу.
func (a *WaitAction) Execute(ctx context.Context, _ *engine.ExecContext, params map[string]any) error {
	seconds, err := ParamFloat(params, "seconds", defaultWaitSeconds)
	if err != nil {
		return invalidParams(ActionWait, "%v", err)
	}
	if seconds < 0 {
		return invalidParams(ActionWait, "seconds must be non-negative, got %v", seconds)
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return cancelled(ActionWait, ctx.Err())
	case <-timer.C:
		return nil
	}
}
