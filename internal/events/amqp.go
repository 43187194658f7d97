package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialTimeout       = 5 * time.Second
	publishTimeout    = 5 * time.Second
	reconnectMinDelay = time.Second
	reconnectMaxDelay = 30 * time.Second
)

var (
	ErrNotConnected    = errors.New("rabbitmq: not connected")
	ErrPublisherClosed = errors.New("rabbitmq: publisher closed")
)

// AMQPPublisher keeps one connection and channel open. When the broker drops
// them a background loop re-dials with backoff while Publish fails fast.
type AMQPPublisher struct {
	url      string
	exchange string

	mu     sync.RWMutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
	done   chan struct{}

	reconnecting atomic.Bool
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, exchange)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(url, exchange string) *AMQPPublisher {
	return &AMQPPublisher{url: url, exchange: exchange, done: make(chan struct{})}
}

// connect dials without holding mu and swaps the new connection in.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = ch.Close()
		_ = conn.Close()
		return ErrPublisherClosed
	}
	oldCh, oldConn := p.ch, p.conn
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()

	if oldCh != nil {
		_ = oldCh.Close()
	}
	if oldConn != nil {
		_ = oldConn.Close()
	}

	go p.watch(conn)
	return nil
}

// watch starts a reconnect as soon as the broker closes conn.
func (p *AMQPPublisher) watch(conn *amqp.Connection) {
	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-p.done:
	case amqpErr, ok := <-closeCh:
		if ok && amqpErr != nil {
			log.Printf("rabbitmq: connection lost: %v", amqpErr)
		}
		p.reconnect()
	}
}

// reconnect runs at most one dial loop at a time.
func (p *AMQPPublisher) reconnect() {
	if p.isClosed() || !p.reconnecting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer p.reconnecting.Store(false)

		delay := reconnectMinDelay
		for {
			err := p.connect()
			if err == nil {
				log.Printf("rabbitmq: reconnected to exchange %s", p.exchange)
				return
			}
			if errors.Is(err, ErrPublisherClosed) {
				return
			}
			log.Printf("rabbitmq: reconnect failed, retrying in %s: %v", delay, err)

			select {
			case <-p.done:
				return
			case <-time.After(delay):
			}
			delay = min(time.Duration(float64(delay)*1.5), reconnectMaxDelay)
		}
	}()
}

func (p *AMQPPublisher) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	p.mu.RLock()
	ch, closed := p.ch, p.closed
	p.mu.RUnlock()

	if closed {
		return ErrPublisherClosed
	}
	if ch == nil || ch.IsClosed() {
		p.reconnect()
		return ErrNotConnected
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	}

	if err := ch.PublishWithContext(publishCtx, p.exchange, event.Type, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}
