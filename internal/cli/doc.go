// Package cli реализует инструмент командной строки avantix.
//
// # Локальные команды
//
// run, validate, actions и flow работают без runner'а: загружают flow
// из --flows-dir и выполняют их in-process через controller.
//
//	avantix run daily_report          # ./flows/daily_report.yaml
//	avantix validate flows/*.yaml
//	avantix flow push report.yaml --db-url postgres://...
//
// Код выхода run: 0 — COMPLETED, 1 — FAILED, 2 — STOPPED (Ctrl+C).
//
// # Remote
//
// remote — HTTP-клиент для avantix-runner. Не импортирует internal/api:
// типы ответов продублированы в client.go.
//
//	avantix --api-url http://localhost:8090 remote start daily_report
//	avantix remote status --json | jq .
//
// queue публикует те же команды в RabbitMQ (runner.commands) и не ждёт
// ответа runner'а:
//
//	avantix queue start daily_report --amqp-url amqp://...
//
// # Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные выводятся в stdout, сообщения и прогресс run — в stderr.
//
// Каждая группа команд создаётся фабричной функцией, принимающей
// замыкания для ленивого создания Settings/Client и Output после
// парсинга PersistentFlags.
package cli
