// Package api содержит HTTP API runner'а.
//
// Структура:
//   - handler.go          — Handler с DI (runner, flows, хранилище, планировщик)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (request id, logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - run_handler.go      — обработчики для /runs и /healthz
//   - flow_handler.go     — обработчики для /flows и /actions
//   - schedule_handler.go — обработчики для /schedules
//
// Runner выполняет не более одного run за раз: POST /api/v1/runs во время
// выполнения возвращает 409.
package api
