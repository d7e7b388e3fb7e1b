package domain

import "time"

// EventType — тип события жизненного цикла run.
type EventType string

// Типы событий. На каждый переход состояния — ровно одно событие.
const (
	EventRunStarted    EventType = "run.started"
	EventStepStarted   EventType = "step.started"
	EventStepSucceeded EventType = "step.succeeded"
	EventStepFailed    EventType = "step.failed"
	EventRunStopped    EventType = "run.stopped"
	EventRunFailed     EventType = "run.failed"
	EventRunCompleted  EventType = "run.completed"
)

// IsTerminal возвращает true для событий, завершающих run.
func (t EventType) IsTerminal() bool {
	switch t {
	case EventRunStopped, EventRunFailed, EventRunCompleted:
		return true
	default:
		return false
	}
}

// Event — уведомление о переходе состояния run.
type Event struct {
	// Type — тип события.
	Type EventType `json:"type"`

	// RunID — идентификатор run (может быть пустым, если engine вызван напрямую).
	RunID string `json:"run_id,omitempty"`

	// FlowName — имя flow.
	FlowName string `json:"flow_name"`

	// Policy — политика flow (run.started) или эффективная политика шага (step.*).
	Policy ErrorPolicy `json:"policy,omitempty"`

	// StepIndex — 1-based индекс шага. 0 для событий уровня run без привязки к шагу.
	StepIndex int `json:"step_index,omitempty"`

	// ActionID — идентификатор action шага.
	ActionID string `json:"action_id,omitempty"`

	// Message — текст ошибки или пояснение.
	Message string `json:"message,omitempty"`

	// Duration — длительность шага (step.succeeded, step.failed).
	Duration time.Duration `json:"duration,omitempty"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`
}
