package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// LogFileName is the audit file the consumer appends to inside its log
// directory.
const LogFileName = "registrations.log"

// Consumer reads registration lifecycle events from a durable queue and
// appends one line per event to LogDir/registrations.log.
type Consumer struct {
	URL    string
	Queue  string
	LogDir string
}

// NewConsumer returns a Consumer for the given broker URL and queue.
func NewConsumer(url, queueName, logDir string) *Consumer {
	if logDir == "" {
		logDir = "logs"
	}
	return &Consumer{URL: url, Queue: queueName, LogDir: logDir}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled.  Lost connections are re-dialed with exponential
// backoff capped at 30s.  Messages that cannot be processed are rejected
// without requeue so a bad payload cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	log := zap.L().Named("registration-consumer")
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		zap.L().Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.HandleMessage(d.Body); err != nil {
				zap.L().Error("handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one payload and appends its audit line.
func (c *Consumer) HandleMessage(body []byte) error {
	var ev RegistrationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.RegistrationID == "" {
		return errors.New("payload missing type or registration_id")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human-friendly log line.
func FormatLine(ev RegistrationEvent) string {
	status := ev.Status
	if ev.PreviousStatus != "" {
		status = ev.PreviousStatus + "->" + ev.Status
	}
	return fmt.Sprintf("[%s] %s | registration_id=%s | event_id=%s | email=%q | status=%s | occupancy=%d/%d\n",
		ev.OccurredAt, ev.Type, ev.RegistrationID, ev.EventID, ev.Email, status, ev.CurrentRegistrations, ev.Capacity)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
