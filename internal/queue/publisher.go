package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log/slog"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

func dialAMQP(url string) (channel, io.Closer, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    return ch, conn, nil
}

// Publisher sends JSON events to durable queues on the default exchange.
// The connection is opened on first use and reopened after a failure.
type Publisher struct {
    url  string
    log  *slog.Logger
    dial dialFunc

    mu       sync.Mutex
    ch       channel
    conn     io.Closer
    declared map[string]bool
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
    return &Publisher{url: url, log: log.With("component", "publisher"), dial: dialAMQP, declared: map[string]bool{}}
}

// Publish marshals payload and sends it as a persistent message routed to
// the queue of the same name.
func (p *Publisher) Publish(ctx context.Context, queue string, payload any) error {
    body, err := json.Marshal(payload)
    if err != nil {
        return fmt.Errorf("marshal %s event: %w", queue, err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    if p.ch == nil {
        ch, conn, err := p.dial(p.url)
        if err != nil {
            p.log.Warn("broker dial failed", "error", err)
            return fmt.Errorf("dial broker: %w", err)
        }
        p.ch, p.conn = ch, conn
        p.declared = map[string]bool{}
    }

    if !p.declared[queue] {
        if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
            p.reset()
            return fmt.Errorf("declare %s: %w", queue, err)
        }
        p.declared[queue] = true
    }

    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := p.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
        p.reset()
        p.log.Warn("publish failed", "queue", queue, "error", err)
        return fmt.Errorf("publish %s: %w", queue, err)
    }
    p.log.Debug("event published", "queue", queue)
    return nil
}

// reset drops the current channel so the next Publish redials. Callers
// hold p.mu.
func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn = nil, nil
}

func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
    return nil
}

// NoopPublisher discards events. It is used when AMQP is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
