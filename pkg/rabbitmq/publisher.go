package rabbitmq

import (
	"context"
	"encoding/json"
	amqp "github.com/rabbitmq/amqp091-go"
	"worker-evaluation/config"
)

type Publisher interface {
	Publish(ctx context.Context, message any) error
}

type publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
	spec QueueSpec
}

// Publish sends message as persistent JSON to the queue's exchange and routing key.
func (p *publisher) Publish(ctx context.Context, message any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declare(ch, p.spec, p.cfg.Kind); err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		p.spec.Exchange,
		p.spec.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ, spec QueueSpec) Publisher {
	return &publisher{conn: conn, cfg: cfg, spec: spec}
}
