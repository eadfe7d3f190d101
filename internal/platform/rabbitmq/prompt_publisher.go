package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherai-workspace/internal/model"
)

// PromptPublisher hands finished prompt records to the persistence worker
// through a durable queue.
type PromptPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPromptPublisher(conn *amqp.Connection, queueName string) *PromptPublisher {
	return &PromptPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *PromptPublisher) PublishPrompt(ctx context.Context, rec model.PromptRecord) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal prompt payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish prompt failed: %w", err)
	}
	return nil
}
