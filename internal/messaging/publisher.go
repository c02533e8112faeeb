package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"chapter-server/internal/workflow"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const appID = "chapter-server"

// Channel - часть amqp.Channel, нужная издателю.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventPublisher публикует изменения состояния глав в очередь RabbitMQ.
type EventPublisher struct {
	channel   Channel
	queueName string
	logger    *zap.Logger
}

var _ workflow.EventSink = (*EventPublisher)(nil)

// NewEventPublisher объявляет durable очередь и возвращает издателя.
// Канал открывается и закрывается вызывающей стороной.
func NewEventPublisher(ch Channel, queueName string, logger *zap.Logger) (*EventPublisher, error) {
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{"x-queue-mode": "lazy"}); err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	logger.Info("Chapter event queue declared", zap.String("queue", queueName))

	return &EventPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("EventPublisher"),
	}, nil
}

// Publish отправляет событие как persistent JSON сообщение.
func (p *EventPublisher) Publish(ctx context.Context, event workflow.StateEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal state event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    event.At,
		AppId:        appID,
		Type:         "chapter." + string(event.State),
		MessageId:    event.PlanID + ":" + event.ChapterID + ":" + strconv.FormatInt(event.At.UnixNano(), 10),
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if err := p.channel.PublishWithContext(ctx, "", p.queueName, false, false, msg); err != nil {
		p.logger.Error("Failed to publish chapter event",
			zap.String("plan_id", event.PlanID),
			zap.String("chapter_id", event.ChapterID),
			zap.Error(err),
		)
		return fmt.Errorf("publish chapter event: %w", err)
	}

	p.logger.Debug("Chapter event published",
		zap.String("plan_id", event.PlanID),
		zap.String("chapter_id", event.ChapterID),
		zap.String("state", string(event.State)),
	)
	return nil
}
