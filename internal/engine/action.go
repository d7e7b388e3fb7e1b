package engine

import (
	"context"
	"errors"
	"fmt"
)

// Action — единица автоматизации, вызываемая шагом flow.
//
// Для каждого шага engine создаёт новый экземпляр через Factory,
// поэтому action не должен хранить состояние между вызовами.
// Execute может выполняться сколь угодно долго; ctx используется
// action'ом для собственных таймаутов и завершения процесса.
type Action interface {
	Execute(ctx context.Context, ec *ExecContext, params map[string]any) error
}

// ActionFunc позволяет использовать функцию как Action.
type ActionFunc func(ctx context.Context, ec *ExecContext, params map[string]any) error

// Execute вызывает f.
func (f ActionFunc) Execute(ctx context.Context, ec *ExecContext, params map[string]any) error {
	return f(ctx, ec, params)
}

// ErrorKind — класс ошибки, возвращённой action.
type ErrorKind string

const (
	// KindRecoverable — ошибка подчиняется политике шага (stop/continue).
	KindRecoverable ErrorKind = "recoverable"

	// KindFatal — ошибка прерывает run при любой политике.
	KindFatal ErrorKind = "fatal"
)

// ActionError — типизированная ошибка action.
//
// Обычная error, возвращённая из Execute, считается KindRecoverable.
type ActionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *ActionError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " action error"
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять errors.Is(err, ErrActionExecution).
func (e *ActionError) Is(target error) bool {
	return target == ErrActionExecution
}

// Recoverable создаёт восстановимую ошибку action.
func Recoverable(format string, args ...any) *ActionError {
	return &ActionError{Kind: KindRecoverable, Message: fmt.Sprintf(format, args...)}
}

// Fatal создаёт фатальную ошибку action.
func Fatal(format string, args ...any) *ActionError {
	return &ActionError{Kind: KindFatal, Message: fmt.Sprintf(format, args...)}
}

// Classify приводит произвольную ошибку action к *ActionError.
func Classify(err error) *ActionError {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if !errors.As(err, &ae) {
		return &ActionError{Kind: KindRecoverable, Err: err}
	}
	kind := ae.Kind
	if kind == "" {
		kind = KindRecoverable
	}
	if error(ae) == err {
		return &ActionError{Kind: kind, Message: ae.Message, Err: ae.Err}
	}
	// Ошибка обёрнута action'ом — сохраняем внешний текст.
	return &ActionError{Kind: kind, Err: err}
}
