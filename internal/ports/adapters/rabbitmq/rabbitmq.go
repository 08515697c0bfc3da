// Package rabbitmq carries narration jobs and results over AMQP 0-9-1.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/forPelevin/adscribe/internal/ports"
)

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

type Producer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConsumer declares a durable queue and limits unacked deliveries to one;
// jobs run sequentially and may take minutes.
func NewConsumer(amqpURL, queueName string) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		closeAll(ch, conn)
		return nil, fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		closeAll(ch, conn)
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, queue: queueName}, nil
}

// Consume forwards deliveries until ctx is done or the channel closes.
func (c *Consumer) Consume(ctx context.Context) (<-chan ports.Message, error) {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %q: %w", c.queue, err)
	}
	out := make(chan ports.Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- toMessage(d):
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func toMessage(d amqp.Delivery) ports.Message {
	return ports.Message{
		Body: d.Body,
		Ack:  func() error { return d.Ack(false) },
		Nack: func(requeue bool) error { return d.Nack(false, requeue) },
	}
}

func (c *Consumer) Close() error {
	err := closeAll(c.ch, c.conn)
	slog.Debug("rabbitmq consumer closed", "queue", c.queue)
	return err
}

func NewProducer(amqpURL string) (*Producer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Producer{conn: conn, ch: ch}, nil
}

func (p *Producer) Publish(ctx context.Context, queueName string, body []byte) error {
	if _, err := p.ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	err := p.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", queueName, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return closeAll(p.ch, p.conn)
}

func closeAll(ch *amqp.Channel, conn *amqp.Connection) error {
	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
