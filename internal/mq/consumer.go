package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/alert"
)

// Raiser runs one alert to completion.
type Raiser interface {
	Raise(ctx context.Context, a alert.Alert) error
}

// Consumer feeds alert jobs from RabbitMQ into a Raiser.
type Consumer struct {
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	raiser Raiser
	log    *zap.Logger
}

// NewConsumer connects and declares the alert topology.
func NewConsumer(url string, raiser Raiser, log *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, raiser: raiser, log: log}, nil
}

// Run consumes until ctx is done or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(AlertQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.process(ctx, d.Body, d)
		}
	}
}

// Close closes the channel and connection.
func (c *Consumer) Close() {
	_ = c.ch.Close()
	_ = c.conn.Close()
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// process raises the alert in body. Failures are not requeued: delivery
// errors are final for an alert.
func (c *Consumer) process(ctx context.Context, body []byte, ack acknowledger) {
	var a alert.Alert
	if err := json.Unmarshal(body, &a); err != nil {
		c.log.Error("bad alert payload", zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}
	if err := c.raiser.Raise(ctx, a); err != nil {
		c.log.Error("alert failed", zap.Error(err), zap.Int64("campaign_id", a.CampaignID))
		_ = ack.Nack(false, false)
		return
	}
	_ = ack.Ack(false)
}
