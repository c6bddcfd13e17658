package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Mailer delivers a Markdown notification.
type Mailer interface {
    SendNotification(ctx context.Context, to, subject, markdown string) error
}

const maxBackoff = 30 * time.Second

// Consumer reads every event queue. Assignment events become notification
// e-mails; the others are written to the activity log.
type Consumer struct {
    url  string
    mail Mailer
    log  *slog.Logger
}

func NewConsumer(url string, mail Mailer, log *slog.Logger) *Consumer {
    return &Consumer{url: url, mail: mail, log: log.With("component", "consumer")}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff after any broker failure.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("broker dial failed", "error", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            backoff = nextBackoff(backoff)
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("consume loop ended, reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

type delivery struct {
    queue string
    amqp.Delivery
}

// source is one queue's delivery stream.
type source struct {
    queue string
    msgs  <-chan amqp.Delivery
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("set qos failed", "error", err)
    }

    sources := make([]source, 0, len(Queues))
    for _, q := range Queues {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("consume %s: %w", q, err)
        }
        sources = append(sources, source{queue: q, msgs: msgs})
    }
    c.log.Info("consumer started", "queues", strings.Join(Queues, ","))
    return c.dispatch(ctx, sources)
}

// dispatch fans the sources into a single handler loop. It returns when ctx
// ends or any source closes, and only after every forwarder has stopped. A
// delivery a forwarder held at that point stays unacked and is redelivered
// once the channel closes.
func (c *Consumer) dispatch(ctx context.Context, sources []source) error {
    ctx, cancel := context.WithCancel(ctx)
    var wg sync.WaitGroup
    defer func() {
        cancel()
        wg.Wait()
    }()

    merged := make(chan delivery)
    ended := make(chan string, len(sources))
    for _, src := range sources {
        wg.Add(1)
        go func(src source) {
            defer wg.Done()
            for {
                select {
                case <-ctx.Done():
                    return
                case d, ok := <-src.msgs:
                    if !ok {
                        ended <- src.queue
                        return
                    }
                    select {
                    case merged <- delivery{src.queue, d}:
                    case <-ctx.Done():
                        return
                    }
                }
            }
        }(src)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case q := <-ended:
            return fmt.Errorf("deliveries for %s closed", q)
        case d := <-merged:
            if err := c.Handle(ctx, d.queue, d.Body); err != nil {
                c.log.Error("handle message failed", "queue", d.queue, "error", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle processes one message body from the named queue. Undecodable
// bodies are an error; a failed e-mail is logged and swallowed.
func (c *Consumer) Handle(ctx context.Context, queue string, body []byte) error {
    switch queue {
    case QueueVideoAssigned:
        var ev VideoAssignedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        subject, md := AssignmentMessage(ev)
        if err := c.mail.SendNotification(ctx, ev.Email, subject, md); err != nil {
            c.log.Warn("assignment notification failed", "email", ev.Email, "video_id", ev.VideoID, "error", err)
        }
        c.log.Info("video assigned", "user_id", ev.UserID, "video_id", ev.VideoID, "access_type", ev.AccessType)
    case QueueUserLoggedIn:
        var ev UserLoggedInEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        c.log.Info("user logged in", "user_id", ev.UserID, "email", ev.Email, "first_login", ev.FirstLogin, "at", ev.LoggedInAt)
    case QueueVideoWatched:
        var ev VideoWatchedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        c.log.Info("video watched", "user_id", ev.UserID, "video_id", ev.VideoID,
            "completion", ev.CompletionPercentage, "completed", ev.Completed)
    default:
        return errors.New("unknown queue " + queue)
    }
    return nil
}

// AssignmentMessage renders the notification for a new or renewed grant.
func AssignmentMessage(ev VideoAssignedEvent) (subject, markdown string) {
    name := ev.FirstName
    if name == "" {
        name = "there"
    }
    var b strings.Builder
    fmt.Fprintf(&b, "Hi %s,\n\nYou now have access to **%s**.\n\n", name, ev.VideoTitle)
    fmt.Fprintf(&b, "- Access type: %s\n", ev.AccessType)
    if ev.ExpiresAt != nil {
        fmt.Fprintf(&b, "- Available until: %s\n", *ev.ExpiresAt)
    }
    if ev.Notes != nil && *ev.Notes != "" {
        fmt.Fprintf(&b, "\n> %s\n", *ev.Notes)
    }
    return "New video available: " + ev.VideoTitle, b.String()
}

func nextBackoff(d time.Duration) time.Duration {
    d *= 2
    if d > maxBackoff {
        return maxBackoff
    }
    return d
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
