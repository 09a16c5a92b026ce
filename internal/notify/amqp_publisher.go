package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"advisor-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes notification envelopes to a topic exchange. Routing
// key is "notify.<channel>" so the downstream dispatcher can bind per channel.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	exchange string
	log      *logger.Logger
}

type ConnectionOptions struct {
	URL           string
	Exchange      string
	RetryAttempts int
	Delay         time.Duration
	Logger        *logger.Logger
}

const maxDialDelay = 60 * time.Second

// DialWithRetry connects to RabbitMQ with exponential backoff, respecting
// context cancellation for startup shutdowns.
func DialWithRetry(ctx context.Context, cfg ConnectionOptions) (*amqp091.Connection, error) {
	var lastErr error

	for i := 1; i <= cfg.RetryAttempts; i++ {
		conn, err := amqp091.Dial(cfg.URL)
		if err == nil {
			if i > 1 {
				cfg.Logger.Infof("rabbit connected after %d attempts", i)
			}
			return conn, nil
		}
		lastErr = err

		sleep := cfg.Delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		cfg.Logger.Warnf("rabbit dial failed (attempt %d, retrying in %s): %v", i, sleep, err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", cfg.RetryAttempts, lastErr)
}

func NewAMQPNotifier(conn *amqp091.Connection, exchange string, log *logger.Logger) (*AMQPNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}

	return &AMQPNotifier{
		conn:     conn,
		exchange: exchange,
		log:      log,
	}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, env Envelope) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if env.ID == uuid.Nil {
		env.ID = uuid.New()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	key := "notify." + env.Channel
	err = ch.PublishWithContext(
		ctx, n.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    env.ID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		n.log.Infof("notification published: key=%s user=%s", key, env.UserID)
	}
	return err
}

func (n *AMQPNotifier) Close() error {
	return n.conn.Close()
}
