package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const Exchange = "onetalk.sessions"

var ErrClosed = errors.New("publisher closed")

const (
	SessionCreated   = "session.created"
	SessionMatched   = "session.matched"
	SessionExtended  = "session.extended"
	SessionCompleted = "session.completed"
)

// Event is a session lifecycle notification for downstream consumers.
type Event struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id"`
	ProfileID string    `json:"profile_id,omitempty"`
	Minutes   int       `json:"minutes,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher defines the interface for publishing lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close()                               {}

type AMQPPublisher struct {
	url string
	log *logrus.Entry

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewAMQPPublisher connects to RabbitMQ and declares the fanout exchange.
// A dropped connection is logged and redialled on the next Publish.
func NewAMQPPublisher(amqpURL string, log *logrus.Entry) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: amqpURL, log: log}
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	p.conn, p.channel = conn, ch
	go p.watch(conn, conn.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

// watch drops conn once the broker closes it. A graceful Close sends no
// error and leaves nothing to do.
func (p *AMQPPublisher) watch(conn *amqp.Connection, closes <-chan *amqp.Error) {
	amqpErr, ok := <-closes
	if !ok || amqpErr == nil {
		return
	}
	p.log.WithError(amqpErr).Warn("rabbitmq connection lost")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == conn {
		p.conn, p.channel = nil, nil
	}
}

// Publish sends ev to the exchange, redialling first when the connection
// was lost. amqp channels are not safe for concurrent publishing, hence the
// mutex.
func (p *AMQPPublisher) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.channel == nil {
		if err := p.connectLocked(); err != nil {
			return fmt.Errorf("reconnect rabbitmq: %w", err)
		}
		p.log.Info("rabbitmq reconnected")
	}
	return p.channel.Publish(Exchange, ev.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Type:         ev.Kind,
		Body:         body,
	})
}

// Close closes the RabbitMQ connection and channel.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn, p.channel = nil, nil
}
