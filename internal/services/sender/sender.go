// Package sender превращает сообщения очереди уведомлений в письма
// и отправляет их через SMTP транспорт.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
	"github.com/magabrotheeeer/coverplan/internal/lib/smtp"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Service отправляет письма по сообщениям очереди уведомлений.
type Service struct {
	transport *smtp.Transport
	// appBaseURL подставляется в ссылки подтверждения и сброса пароля.
	appBaseURL string
	log        *slog.Logger
}

// New создаёт сервис отправки писем.
func New(transport *smtp.Transport, appBaseURL string, log *slog.Logger) *Service {
	return &Service{transport: transport, appBaseURL: appBaseURL, log: log}
}

// Handle обрабатывает одно сообщение очереди: декодирует уведомление,
// собирает письмо и отправляет его. Возврат ошибки вернёт сообщение в очередь.
func (s *Service) Handle(body []byte) error {
	const op = "sender.Handle"

	var msg models.Notification
	if err := json.Unmarshal(body, &msg); err != nil {
		// Нечитаемое сообщение бессмысленно возвращать в очередь.
		s.log.Error("failed to decode notification, dropping", sl.Err(err))
		return nil
	}

	subject, text, err := s.compose(msg)
	if err != nil {
		s.log.Error("failed to compose email, dropping",
			slog.String("type", msg.Type), sl.Err(err))
		return nil
	}

	if err := s.send(msg.Email, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("email sent", slog.String("type", msg.Type))
	return nil
}

// compose собирает тему и тело письма по типу уведомления.
func (s *Service) compose(msg models.Notification) (string, string, error) {
	switch msg.Type {
	case models.NotifyWelcome:
		return "Welcome to your protection plan",
			fmt.Sprintf("Hi %s,\r\n\r\nYour %s plan (R%.2f per month) is being set up. "+
				"You will receive a receipt once your first payment is confirmed.\r\n\r\n"+
				"Thank you for choosing us.\r\n", msg.Name, msg.PlanName, msg.Amount), nil
	case models.NotifyReceipt:
		return "Payment received",
			fmt.Sprintf("Hi %s,\r\n\r\nWe received your payment of R%.2f for the %s plan. "+
				"Your cover is active.\r\n", msg.Name, msg.Amount, msg.PlanName), nil
	case models.NotifyCancellation:
		return "Your plan has been cancelled",
			fmt.Sprintf("Hi %s,\r\n\r\nYour %s plan will not renew. "+
				"Your cover remains active until the end of the paid period.\r\n",
				msg.Name, msg.PlanName), nil
	case models.NotifyVerifyEmail:
		return "Confirm your email address",
			fmt.Sprintf("Hi %s,\r\n\r\nPlease confirm your email address:\r\n%s/verify-email?token=%s\r\n",
				msg.Name, s.appBaseURL, msg.Token), nil
	case models.NotifyResetLink:
		return "Reset your password",
			fmt.Sprintf("Hi %s,\r\n\r\nTo reset your password follow the link below. "+
				"The link expires in one hour.\r\n%s/reset-password?token=%s\r\n",
				msg.Name, s.appBaseURL, msg.Token), nil
	}
	return "", "", fmt.Errorf("unknown notification type %q", msg.Type)
}

// send открывает SMTP соединение и отправляет одно письмо.
func (s *Service) send(to, subject, text string) error {
	const op = "sender.send"

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if quitErr := client.Quit(); quitErr != nil {
			s.log.Warn("failed to close smtp session", sl.Err(quitErr))
		}
	}()

	from := s.transport.GetSMTPUser()
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s", from, to, subject, text)
	if _, err := w.Write([]byte(message)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
