package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPBroker publishes events to a topic exchange with the topic as routing
// key. Each instance consumes them back through its own exclusive queue.
type AMQPBroker struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPBroker(url, exchange string, logger *zap.Logger) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPBroker{conn: conn, ch: ch, exchange: exchange, logger: logger.Named("amqp")}, nil
}

func (b *AMQPBroker) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ch.PublishWithContext(ctx,
		b.exchange, // exchange
		e.Topic,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
}

// Relay consumes every event from the exchange and hands it to local until
// ctx is done.
func (b *AMQPBroker) Relay(ctx context.Context, local Publisher) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "#", b.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	b.logger.Info("AMQP relay consuming", zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			var e Event
			if err := json.Unmarshal(d.Body, &e); err != nil {
				b.logger.Warn("Dropping malformed event", zap.Error(err))
				continue
			}
			_ = local.Publish(ctx, e)
		}
	}
}

func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch != nil && !b.ch.IsClosed() {
		if err := b.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
