package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/dodocesoir/internal/mailer"
)

// StartMailConsumer connects to RabbitMQ, declares the auth.otp_requested
// queue (durable) and mails every code it receives through sender.  It
// runs a reconnect loop with exponential backoff and returns only when ctx
// is cancelled.  A message that cannot be handled is rejected without
// requeue so one bad payload cannot stall the queue.
func StartMailConsumer(ctx context.Context, url string, sender mailer.Sender) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("mail-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, sender)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("mail-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sender mailer.Sender) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(10, 0, false); err != nil {
        log.Printf("mail-consumer: set QoS failed: %v", err)
    }

    if _, err := ch.QueueDeclare(OTPRequestedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(OTPRequestedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(ctx, sender, d.Body); err != nil {
                log.Printf("mail-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(ctx context.Context, sender mailer.Sender, body []byte) error {
    var ev OTPRequestedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Email == "" || ev.Code == "" {
        return errors.New("event without email or code")
    }
    sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
    defer cancel()
    msg := mailer.CodeMessage(ev.Email, ev.Code, time.Duration(ev.TTLSeconds)*time.Second)
    if err := sender.Send(sendCtx, msg); err != nil {
        return fmt.Errorf("send mail: %w", err)
    }
    return nil
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
