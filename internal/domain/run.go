package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome — итог одного run.
//
// Возможные варианты:
//   - COMPLETED — StepIndex == 0, Err == nil
//   - STOPPED   — StepIndex указывает на шаг, который так и не был запущен
//   - FAILED    — StepIndex указывает на упавший шаг (0 — ошибка конфигурации до старта)
type Outcome struct {
	// Status — финальный статус run.
	Status RunStatus `json:"status"`

	// StepIndex — 1-based индекс шага, на котором run остановился или упал.
	StepIndex int `json:"step_index,omitempty"`

	// Err — причина падения. Только для FAILED.
	Err error `json:"-"`
}

// Completed создаёт успешный Outcome.
func Completed() Outcome {
	return Outcome{Status: RunStatusCompleted}
}

// Stopped создаёт Outcome для отменённого run.
func Stopped(atStep int) Outcome {
	return Outcome{Status: RunStatusStopped, StepIndex: atStep}
}

// Failed создаёт Outcome для упавшего run.
func Failed(atStep int, cause error) Outcome {
	return Outcome{Status: RunStatusFailed, StepIndex: atStep, Err: cause}
}

// Error возвращает текст ошибки или пустую строку.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// RunTrigger — источник запуска run.
type RunTrigger string

const (
	TriggerCLI      RunTrigger = "cli"
	TriggerAPI      RunTrigger = "api"
	TriggerQueue    RunTrigger = "queue"
	TriggerSchedule RunTrigger = "schedule"
)

// Run — снимок состояния одного выполнения flow.
//
// Хранится только в памяти процесса: история запусков не сохраняется.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// FlowName — имя выполняемого flow.
	FlowName string `json:"flow_name"`

	// Trigger — кто запустил run.
	Trigger RunTrigger `json:"trigger,omitempty"`

	// Status — текущий статус.
	Status RunStatus `json:"status"`

	// StepIndex — текущий шаг (для RUNNING) или шаг остановки/падения.
	StepIndex int `json:"step_index,omitempty"`

	// StepsTotal — количество шагов в flow.
	StepsTotal int `json:"steps_total"`

	// StartedAt — время старта worker'а.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки для FAILED.
	Error string `json:"error,omitempty"`

	// CancelRequested — оператор запросил отмену.
	CancelRequested bool `json:"cancel_requested,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// Finish применяет итог run.
func (r *Run) Finish(o Outcome) {
	now := time.Now()
	r.Status = o.Status
	r.StepIndex = o.StepIndex
	r.Error = o.Error()
	r.FinishedAt = &now
}
