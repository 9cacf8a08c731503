package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/dreamware/triod/internal/envelope"
)

// Conn is a process-wide broker handle: one connection, one channel,
// guarded by a mutex because amqp091-go channels are not safe for
// concurrent Publish calls from multiple goroutines.
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu  sync.Mutex
	log zerolog.Logger
}

// Dial connects to the broker at url and opens the single channel this
// process will publish and consume on.
func Dial(url string, log zerolog.Logger) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial %s: %w", url, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}
	return &Conn{conn: conn, ch: ch, log: log}, nil
}

// Declare ensures queue exists, durable or transient per the caller's
// config. Safe to call repeatedly; queue_declare is idempotent.
func (c *Conn) Declare(queue string, durable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.ch.QueueDeclare(queue, durable, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: declare %s: %w", queue, err)
	}
	return nil
}

// Publish marshals env and publishes it to queue on the default exchange,
// the routing-key-is-queue-name pattern the predecessor used throughout.
func (c *Conn) Publish(ctx context.Context, queue string, env envelope.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("broker: marshal envelope for %s: %w", queue, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("broker: publish to %s: %w", queue, err)
	}
	c.log.Debug().Str("queue", queue).Str("command", string(env.Command)).Msg("published envelope")
	return nil
}

// DeclareReplyQueue declares a server-named, exclusive, auto-delete queue
// and returns the name the broker assigned it. Callers that need a one-shot
// reply address — triodctl's request/response commands — publish it as
// ReplyTo and Consume from the returned name instead of sharing a durable
// queue with every other client.
func (c *Conn) DeclareReplyQueue() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("broker: declare reply queue: %w", err)
	}
	return q.Name, nil
}

// Handler processes one decoded envelope received from a Consume loop.
type Handler func(envelope.Envelope)

// Consume starts an auto-ack delivery loop on queue, invoking handler for
// every envelope that decodes cleanly. Malformed bodies are logged and
// dropped rather than crashing the consumer, and a handler panic is
// recovered so one bad message never takes the whole process down —
// mirroring spec.md §7's "malformed envelope: log and ignore" rule extended
// to handler-level failures. Consume blocks until ctx is done.
func (c *Conn) Consume(ctx context.Context, queue string, handler Handler) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, queue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker: delivery channel for %s closed", queue)
			}
			c.dispatch(queue, d.Body, handler)
		}
	}
}

func (c *Conn) dispatch(queue string, body []byte, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("queue", queue).Interface("panic", r).Msg("recovered from handler panic")
		}
	}()

	var env envelope.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.log.Warn().Str("queue", queue).Err(err).Msg("dropping malformed envelope")
		return
	}
	handler(env)
}

// Close tears down the channel and connection. Safe to call once per Conn.
func (c *Conn) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return fmt.Errorf("broker: close channel: %w", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("broker: close connection: %w", err)
	}
	return nil
}
