// Package telemetry обеспечивает наблюдаемость runner и CLI.
//
// Включает:
//   - logging.go — structured logging через slog (LOG_LEVEL, LOG_FORMAT, LOG_FILE)
//   - metrics.go — Prometheus метрики run и шагов (engine.Sink)
//
// Сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
