package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	NOT_STARTED → RUNNING → COMPLETED
//	                      ↘ STOPPED   (отмена оператором между шагами)
//	                      ↘ FAILED
type RunStatus string

const (
	// RunStatusNotStarted — run создан, но worker ещё не начал выполнение.
	RunStatusNotStarted RunStatus = "NOT_STARTED"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — все шаги пройдены.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusStopped — run остановлен по запросу отмены.
	RunStatusStopped RunStatus = "STOPPED"

	// RunStatusFailed — run прерван ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusStopped, RunStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление RunStatus.
func (s RunStatus) String() string {
	return string(s)
}
