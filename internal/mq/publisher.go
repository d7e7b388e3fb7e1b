package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/avantix/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunStart  MessageType = "run.start"
	MessageTypeRunCancel MessageType = "run.cancel"
	MessageTypeRunEvent  MessageType = "run.event"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// RunStartPayload — команда запуска flow.
type RunStartPayload struct {
	Flow string `json:"flow"`
}

// RunCancelPayload — команда отмены run.
type RunCancelPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// MessagePublisher публикует сообщение в exchange.
type MessagePublisher interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunStart публикует команду запуска flow.
// Потребитель: avantix-runner.
func (p *Publisher) PublishRunStart(ctx context.Context, flow string) error {
	return p.Publish(ctx, ExchangeCommands, RoutingKeyRunStart,
		NewMessage(MessageTypeRunStart, RunStartPayload{Flow: flow}))
}

// PublishRunCancel публикует команду отмены run.
// Потребитель: avantix-runner.
func (p *Publisher) PublishRunCancel(ctx context.Context, runID uuid.UUID) error {
	return p.Publish(ctx, ExchangeCommands, RoutingKeyRunCancel,
		NewMessage(MessageTypeRunCancel, RunCancelPayload{RunID: runID}))
}

const eventPublishTimeout = 2 * time.Second

// EventSink публикует события run в avantix.events.
//
// Реализует engine.Sink. Ошибки публикации логируются и не влияют
// на выполнение run.
type EventSink struct {
	pub    MessagePublisher
	logger *slog.Logger
}

// NewEventSink создаёт EventSink.
func NewEventSink(pub MessagePublisher, logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{pub: pub, logger: logger}
}

// Emit публикует событие с routing key, равным его типу.
func (s *EventSink) Emit(ctx context.Context, ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	msg := NewMessage(MessageTypeRunEvent, ev)
	if err := s.pub.Publish(ctx, ExchangeEvents, EventRoutingKey(ev.Type), msg); err != nil {
		s.logger.Warn("failed to publish run event",
			"type", ev.Type,
			"run_id", ev.RunID,
			"error", err,
		)
	}
}
