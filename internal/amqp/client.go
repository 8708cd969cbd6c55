package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Client publishes and consumes ledger events over RabbitMQ. One durable
// direct exchange, one durable queue; messages are persistent JSON.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionRecorded emits an event after a spend transaction was
// persisted.
func (c *Client) PublishTransactionRecorded(ctx context.Context, msg TransactionRecordedMessage) error {
	return c.publish(ctx, TypeTransactionRecorded, msg)
}

// PublishBalanceUpdated emits an event after a balance write or redemption.
func (c *Client) PublishBalanceUpdated(ctx context.Context, msg BalanceUpdatedMessage) error {
	return c.publish(ctx, TypeBalanceUpdated, msg)
}

// PublishGoalAchieved emits an event when a goal crosses its target.
func (c *Client) PublishGoalAchieved(ctx context.Context, msg GoalAchievedMessage) error {
	return c.publish(ctx, TypeGoalAchieved, msg)
}

func (c *Client) publish(ctx context.Context, msgType string, payload any) error {
	body, err := wrap(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "Published ledger event",
		"type", msgType,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Handlers dispatches consumed envelopes by type. A nil handler skips
// that type with an ack.
type Handlers struct {
	OnTransactionRecorded func(ctx context.Context, msg *TransactionRecordedMessage) error
	OnBalanceUpdated      func(ctx context.Context, msg *BalanceUpdatedMessage) error
}

// ConsumeMessages blocks consuming ledger events until the context ends.
// Malformed messages are rejected without requeue; handler failures are
// requeued for a later attempt.
func (c *Client) ConsumeMessages(ctx context.Context, handlers Handlers) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			env, err := EnvelopeFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal envelope", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := c.dispatch(ctx, env, handlers); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err, "type", env.Type)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, env *Envelope, handlers Handlers) error {
	switch env.Type {
	case TypeTransactionRecorded:
		if handlers.OnTransactionRecorded == nil {
			return nil
		}
		var msg TransactionRecordedMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return handlers.OnTransactionRecorded(ctx, &msg)
	case TypeBalanceUpdated:
		if handlers.OnBalanceUpdated == nil {
			return nil
		}
		var msg BalanceUpdatedMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return handlers.OnBalanceUpdated(ctx, &msg)
	case TypeGoalAchieved:
		// Produced here, consumed by the notification layer.
		return nil
	}
	slog.WarnContext(ctx, "Unknown message type, dropping", "type", env.Type)
	return nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
