// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация команд и событий run
//   - consumer.go   — потребление сообщений из очередей
//   - commands.go   — обработчик очереди команд runner
//
// Типы сообщений:
//   - run.start   — запустить flow по имени
//   - run.cancel  — отменить run
//   - run.event   — событие жизненного цикла run (routing key = тип события)
//
// Exchanges:
//   - avantix.commands — команды runner
//   - avantix.events   — события run (topic)
//   - avantix.dlq      — dead letter queue
package mq
