// Package notify публикует уведомления в очередь брокера.
// Потребитель (cmd/notifier) превращает их в письма.
package notify

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/coverplan/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Publisher отправляет уведомления в exchange уведомлений.
type Publisher struct {
	ch         *amqp.Channel
	routingKey string
}

// New создаёт издателя уведомлений; routingKey — имя очереди уведомлений.
func New(ch *amqp.Channel, routingKey string) *Publisher {
	return &Publisher{ch: ch, routingKey: routingKey}
}

// Publish публикует уведомление. Контекст проверяется до публикации:
// библиотека брокера не принимает контекст.
func (p *Publisher) Publish(ctx context.Context, msg models.Notification) error {
	const op = "notify.Publish"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.NotificationsExchange, p.routingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
