package engine

import (
	"errors"
	"fmt"
)

// Ошибки выполнения flow.
var (
	// ErrConfiguration — некорректная политика flow или шага. Run не начинается.
	ErrConfiguration = errors.New("invalid flow configuration")

	// ErrUnknownAction — action не найден в реестре. Фатально при любой политике.
	ErrUnknownAction = errors.New("unknown action")

	// ErrActionExecution — action завершился ошибкой.
	ErrActionExecution = errors.New("action execution failed")

	// ErrActionPanic — action запаниковал; engine перехватил панику.
	ErrActionPanic = errors.New("action panicked")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepIndex int    // 1-based индекс шага, 0 — уровень flow
	Field     string // поле, вызвавшее ошибку
	Message   string // описание ошибки
	Err       error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepIndex > 0 {
		return fmt.Sprintf("step %d: %s", e.StepIndex, e.Message)
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepIndex int, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepIndex: stepIndex,
		Field:     field,
		Message:   message,
		Err:       err,
	}
}

// StepError — ошибка конкретного шага run.
//
// Оборачивает ErrUnknownAction или ошибку action; errors.Is/As
// видят обе ошибки.
type StepError struct {
	Index    int    // 1-based индекс шага
	ActionID string // идентификатор action
	Err      error  // причина
}

// Error реализует интерфейс error.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.ActionID, e.Err)
}

// Unwrap возвращает причину.
func (e *StepError) Unwrap() error {
	return e.Err
}
