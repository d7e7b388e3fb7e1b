package cli

import (
	"fmt"
	"log/slog"

	"github.com/shaiso/avantix/internal/loader"
)

// Settings — общие настройки локальных команд.
type Settings struct {
	// FlowsDir — каталог flow (--flows-dir, FLOWS_DIR).
	FlowsDir string

	// DBURL — Postgres хранилище flow (--db-url, DB_URL).
	DBURL string

	// Logger — логгер engine. Пишет в stderr.
	Logger *slog.Logger
}

// Loader возвращает загрузчик flow для FlowsDir.
func (s *Settings) Loader() *loader.Loader {
	return loader.New(s.FlowsDir)
}

// ExitError — ошибка с кодом выхода процесса.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Коды выхода команды run.
const (
	ExitCompleted = 0
	ExitFailed    = 1
	ExitStopped   = 2
)

func exitf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}
