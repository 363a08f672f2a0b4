package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/logger"
)

// FulfillmentRoutingKey is the routing key couriers publish delivery confirmations with.
const FulfillmentRoutingKey = "fulfillment.delivered"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	mu      sync.Mutex
	log     *logger.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string // topic exchange for order events and fulfillment messages
	Queue    string // durable queue bound to FulfillmentRoutingKey
}

// NewClient creates a new RabbitMQ client.
// It connects, declares the topic exchange and binds the fulfillment queue.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "orders"
	}
	if cfg.Queue == "" {
		cfg.Queue = "order_fulfillment_queue"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.Info("RabbitMQ client connected", "exchange", cfg.Exchange, "queue", cfg.Queue)

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		log:     log.With("service", "RabbitMQ"),
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		return fmt.Errorf("failed to declare %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, FulfillmentRoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", cfg.Queue, err)
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends an order event to the exchange using the event type as routing key.
func (c *Client) Publish(ctx context.Context, event models.OrderEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event to JSON: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		c.cfg.Exchange, // exchange
		event.Type,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.OrderID + ":" + event.Type,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.log.Debug("Sent order event", "routing_key", event.Type, "order_id", event.OrderID)
	return nil
}

// FulfillmentMessage is the body of a delivery confirmation.
type FulfillmentMessage struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Handler processes one fulfillment message. Returning a Permanent error drops the
// message; any other error requeues it.
type Handler func(ctx context.Context, msg FulfillmentMessage) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// DecodeFulfillment parses and checks a fulfillment message body.
func DecodeFulfillment(body []byte) (FulfillmentMessage, error) {
	var msg FulfillmentMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, Permanent(fmt.Errorf("malformed fulfillment message: %w", err))
	}
	if msg.OrderID == "" {
		return msg, Permanent(errors.New("fulfillment message without order_id"))
	}
	if msg.Status != "" && msg.Status != string(models.OrderStatusDelivered) {
		return msg, Permanent(fmt.Errorf("unsupported fulfillment status %q", msg.Status))
	}
	return msg, nil
}

// ConsumeFulfillment starts delivering fulfillment messages to handler until ctx is done
// or the channel closes. Messages are acknowledged manually.
func (c *Client) ConsumeFulfillment(ctx context.Context, handler Handler) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.cfg.Queue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("Waiting for fulfillment messages", "queue", c.cfg.Queue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.log.Warn("Fulfillment delivery channel closed")
					return
				}
				HandleDelivery(ctx, msg, handler, c.log)
			}
		}
	}()

	return nil
}

// HandleDelivery decodes msg, runs handler and acks, drops or requeues accordingly.
func HandleDelivery(ctx context.Context, msg amqp.Delivery, handler Handler, log *logger.Logger) {
	if log == nil {
		log = logger.NewNop()
	}
	fm, err := DecodeFulfillment(msg.Body)
	if err == nil {
		err = handler(ctx, fm)
	}

	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("Error acking message", "delivery_tag", msg.DeliveryTag, "error", ackErr)
		}
	case IsPermanent(err):
		log.Warn("Dropping fulfillment message", "delivery_tag", msg.DeliveryTag, "error", err)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Error("Error nacking message", "delivery_tag", msg.DeliveryTag, "error", nackErr)
		}
	default:
		log.Error("Error processing message, requeueing", "delivery_tag", msg.DeliveryTag, "error", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("Error nacking message", "delivery_tag", msg.DeliveryTag, "error", nackErr)
		}
	}
}
