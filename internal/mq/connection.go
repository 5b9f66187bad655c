// Package mq carries alert jobs over RabbitMQ for deployments that run the
// alert workers outside the tracking process.
package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the topic exchange alert jobs are published to.
	ExchangeName = "phishtrack.events"
	// AlertRoutingKey routes alert jobs.
	AlertRoutingKey = "alert.raise"
	// AlertQueue is the durable queue consumed by alert workers.
	AlertQueue = "phishtrack.alerts"
)

// NewConnection dials RabbitMQ.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// declare sets up the exchange, queue and binding used for alerts.
func declare(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(AlertQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(AlertQueue, AlertRoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}
