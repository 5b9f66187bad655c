package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/alert"
	"github.com/and161185/phishtrack/internal/metrics"
)

// channel is the part of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AlertPublisher implements alert.Dispatcher by publishing to RabbitMQ from
// its own goroutine, so Dispatch never waits on the network.
type AlertPublisher struct {
	ch      channel
	closeFn func()
	log     *zap.Logger
	pending chan alert.Alert
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAlertPublisher connects, declares the topology and starts the pump.
func NewAlertPublisher(url string, buffer int, log *zap.Logger) (*AlertPublisher, error) {
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
	return newAlertPublisher(ch, func() { _ = ch.Close(); _ = conn.Close() }, buffer, log), nil
}

func newAlertPublisher(ch channel, closeFn func(), buffer int, log *zap.Logger) *AlertPublisher {
	if buffer < 1 {
		buffer = 64
	}
	p := &AlertPublisher{
		ch:      ch,
		closeFn: closeFn,
		log:     log,
		pending: make(chan alert.Alert, buffer),
		done:    make(chan struct{}),
	}
	go p.pump()
	return p
}

// Dispatch queues a for publishing; a full buffer or a closed publisher drops it.
func (p *AlertPublisher) Dispatch(a alert.Alert) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.Alerts.WithLabelValues("dropped").Inc()
		p.log.Warn("alert publisher closed, dropping", zap.Int64("campaign_id", a.CampaignID))
		return
	}
	select {
	case p.pending <- a:
		metrics.Alerts.WithLabelValues("dispatched").Inc()
	default:
		metrics.Alerts.WithLabelValues("dropped").Inc()
		p.log.Warn("alert publish buffer full, dropping", zap.Int64("campaign_id", a.CampaignID))
	}
}

// Close flushes pending alerts and closes the connection.
func (p *AlertPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.pending)
	p.mu.Unlock()

	<-p.done
	if p.closeFn != nil {
		p.closeFn()
	}
}

func (p *AlertPublisher) pump() {
	defer close(p.done)
	for a := range p.pending {
		if err := p.publish(a); err != nil {
			p.log.Error("alert publish failed", zap.Error(err), zap.Int64("campaign_id", a.CampaignID))
		}
	}
}

func (p *AlertPublisher) publish(a alert.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.ch.PublishWithContext(ctx, ExchangeName, AlertRoutingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}
