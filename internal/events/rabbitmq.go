package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

// RabbitPublisher sends events to a durable topic exchange, routed by event
// type so consumers can bind to "transfer.*".
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("NewRabbitPublisher: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewRabbitPublisher: channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("NewRabbitPublisher: declare exchange: %w", err)
	}

	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	err := p.channel.PublishWithContext(ctx, p.exchange, string(event.EventType), false, false, publishing(event))
	if err != nil {
		return fmt.Errorf("RabbitPublisher.Publish: %w", err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("RabbitPublisher.Close: %w", err)
	}
	return p.conn.Close()
}

func publishing(event domain.OutboxEvent) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.CreatedAt,
		Type:         string(event.EventType),
		Headers:      amqp.Table{"aggregate_id": event.AggregateID},
		Body:         event.Payload,
	}
}
