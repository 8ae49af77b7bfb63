// Package notifier собирает процесс-потребитель очереди уведомлений:
// подключается к брокеру и отправляет письма через SMTP.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/coverplan/internal/config"
	"github.com/magabrotheeeer/coverplan/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/coverplan/internal/lib/smtp"
	"github.com/magabrotheeeer/coverplan/internal/services/sender"
)

// App — процесс-потребитель уведомлений.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	sender *sender.Service
	logger *slog.Logger
}

// New собирает потребителя: брокер, SMTP транспорт и сервис отправки.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitURL, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.NotificationQueue)
	if err != nil {
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTPConnection, logger)
	senderService := sender.New(transport, cfg.AppBaseURL, logger)

	return &App{
		conn:   conn,
		ch:     ch,
		queue:  cfg.NotificationQueue,
		sender: senderService,
		logger: logger,
	}, nil
}

// Run запускает потребление очереди до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("notification consumer starting", slog.String("queue", a.queue))
	if err := rabbitmq.ConsumerMessage(ctx, a.ch, a.queue, a.sender.Handle); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down notification consumer")
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
