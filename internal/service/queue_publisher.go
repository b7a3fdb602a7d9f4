package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/church-events/internal/queue"
)

// Publisher delivers registration lifecycle events.  Services call it only
// after the corresponding transaction has committed; a failed publish
// never undoes a committed change.
type Publisher interface {
	Publish(ctx context.Context, ev queue.RegistrationEvent) error
}

// NopPublisher drops every event.  It is used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.RegistrationEvent) error { return nil }

// AMQPPublisher publishes events to a durable RabbitMQ queue on the default
// exchange.  Each call dials its own connection, which keeps the publisher
// stateless at the cost of a handshake per message.
type AMQPPublisher struct {
	URL   string
	Queue string
}

// NewAMQPPublisher returns a publisher for url and queueName.
func NewAMQPPublisher(url, queueName string) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Queue: queueName}
}

// Publish sends ev as a persistent JSON message.  Errors are logged and
// returned so the caller can choose to ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.RegistrationEvent) error {
	log := zap.L().Named("rabbitmq")
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		log.Warn("queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		log.Warn("publish failed", zap.Error(err), zap.String("type", ev.Type))
		return err
	}
	return nil
}
