package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ttt-platform/trash2treasure/utils"
)

// Publisher sends events somewhere. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// ErrBrokerUnavailable is returned while a recent dial failure is cooling down
// or another caller is already dialling.
var ErrBrokerUnavailable = errors.New("event broker unavailable")

const (
	defaultDialTimeout = 5 * time.Second
	defaultRetryAfter  = 30 * time.Second
)

// AMQPPublisher publishes persistent JSON messages to a durable queue on the
// default exchange. The connection is opened lazily and re-opened after errors.
// Only one caller dials at a time; the rest fail fast with ErrBrokerUnavailable.
type AMQPPublisher struct {
	url   string
	queue string

	// RetryAfter is how long publishes are skipped after a failed dial.
	RetryAfter time.Duration

	dialMu sync.Mutex // held for the whole dial, never waited on

	mu      sync.Mutex // guards the fields below
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewAMQPPublisher returns a publisher for url and queue. No connection is made until the first Publish.
func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, RetryAfter: defaultRetryAfter}
}

// NewPublisher picks the AMQP publisher when url is set and a NopPublisher otherwise.
func NewPublisher(url, queue string) Publisher {
	if url == "" {
		return NopPublisher{}
	}
	return NewAMQPPublisher(url, queue)
}

// contextDial bounds the TCP connect and the AMQP handshake by ctx's deadline.
// The connection deadline is cleared by amqp once the handshake completes.
func contextDial(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(defaultDialTimeout)
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// current returns an open channel, or nil when a dial is needed.
func (p *AMQPPublisher) current() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	return nil, nil
}

func (p *AMQPPublisher) connect(ctx context.Context) (*amqp.Channel, error) {
	if !p.dialMu.TryLock() {
		return nil, ErrBrokerUnavailable
	}
	defer p.dialMu.Unlock()

	if ch, err := p.current(); ch != nil || err != nil {
		return ch, err
	}

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		var err error
		conn, err = amqp.DialConfig(p.url, amqp.Config{Dial: contextDial(ctx)})
		if err != nil {
			p.coolDown()
			return nil, fmt.Errorf("dial broker: %w", err)
		}
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.coolDown()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	p.mu.Lock()
	p.conn, p.ch = conn, ch
	p.mu.Unlock()
	return ch, nil
}

func (p *AMQPPublisher) coolDown() {
	p.mu.Lock()
	p.conn, p.ch = nil, nil
	p.retryAt = time.Now().Add(p.RetryAfter)
	p.mu.Unlock()
}

// Publish sends ev as a persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ch, err := p.current()
	if err != nil {
		return err
	}
	if ch == nil {
		if ch, err = p.connect(ctx); err != nil {
			return err
		}
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		// force a fresh channel next time
		p.mu.Lock()
		if p.ch == ch {
			p.ch = nil
		}
		p.mu.Unlock()
		_ = ch.Close()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close shuts the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// Emit publishes events with a short timeout and only logs failures; callers
// have already committed their transaction and must not fail because of it.
func Emit(p Publisher, evs ...Event) {
	if p == nil {
		return
	}
	for _, ev := range evs {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := p.Publish(ctx, ev); err != nil {
			utils.Sugar.Warnw("event publish failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
		}
		cancel()
	}
}
