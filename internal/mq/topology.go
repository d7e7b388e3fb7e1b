package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/avantix/internal/domain"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeCommands Exchange = "avantix.commands"
	ExchangeEvents   Exchange = "avantix.events"
	ExchangeDLQ      Exchange = "avantix.dlq"
)

// Queues — имена очередей.
const (
	QueueRunnerCommands Queue = "runner.commands"
	QueueDLQCommands    Queue = "dlq.commands"
)

// Routing keys команд.
const (
	RoutingKeyRunStart    RoutingKey = "run.start"
	RoutingKeyRunCancel   RoutingKey = "run.cancel"
	RoutingKeyDLQCommands RoutingKey = "commands"
)

// EventRoutingKey возвращает routing key события: его тип ("step.failed").
// Подписчики avantix.events могут фильтровать по шаблону, например "run.*".
func EventRoutingKey(t domain.EventType) RoutingKey {
	return RoutingKey(t)
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeCommands, amqp.ExchangeDirect},
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQCommands),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// runner.commands — некорректные команды уходят в DLQ
		{QueueRunnerCommands, dlqArgs},
		{QueueDLQCommands, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueRunnerCommands, RoutingKeyRunStart, ExchangeCommands},
		{QueueRunnerCommands, RoutingKeyRunCancel, ExchangeCommands},
		{QueueDLQCommands, RoutingKeyDLQCommands, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Avantix RabbitMQ Topology:

    avantix.commands (direct)
    └── runner.commands [routing: run.start, run.cancel]
            Consumer: avantix-runner
            DLQ: dlq.commands

    avantix.events (topic)
        routing: run.started, step.started, step.succeeded, step.failed,
                 run.stopped, run.failed, run.completed
        Consumers: bind own queues

    avantix.dlq (direct)
    └── dlq.commands [routing: commands]
            Manual processing
  `
}
