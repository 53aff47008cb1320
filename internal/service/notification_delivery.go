package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/noah-isme/presence-go-api/internal/dto"
)

// NotificationDelivery forwards a persisted notification to an out-of-band channel.
type NotificationDelivery interface {
	Deliver(ctx context.Context, recipient string, notification dto.NotificationResponse) error
}

// LogNotificationDelivery only logs deliveries. It is used when SMTP is not configured.
type LogNotificationDelivery struct {
	logger zerolog.Logger
}

// NewLogNotificationDelivery constructs a logging provider.
func NewLogNotificationDelivery(logger zerolog.Logger) *LogNotificationDelivery {
	return &LogNotificationDelivery{logger: logger.With().Str("component", "notification_delivery").Logger()}
}

// Deliver logs the notification and returns nil to indicate success.
func (l *LogNotificationDelivery) Deliver(ctx context.Context, recipient string, notification dto.NotificationResponse) error {
	l.logger.Info().
		Uint("notification_id", notification.ID).
		Str("type", notification.Type).
		Str("recipient", maskEmailAddress(recipient)).
		Msg("notification delivered to inbox")
	return nil
}

// SMTPConfig holds the outbound mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MailNotificationDelivery emails notifications to the actor's directory address.
type MailNotificationDelivery struct {
	dialer *gomail.Dialer
	from   string
	logger zerolog.Logger
}

// NewMailNotificationDelivery constructs an SMTP provider.
func NewMailNotificationDelivery(cfg SMTPConfig, logger zerolog.Logger) (*MailNotificationDelivery, error) {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp host and sender must be provided")
	}
	return &MailNotificationDelivery{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger.With().Str("component", "mail_delivery").Logger(),
	}, nil
}

// Deliver mails the notification. Actors without a directory address are skipped.
func (m *MailNotificationDelivery) Deliver(ctx context.Context, recipient string, notification dto.NotificationResponse) error {
	if recipient == "" {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", notificationSubject(notification.Type))
	msg.SetBody("text/plain", notification.Message)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send notification mail: %w", err)
	}

	m.logger.Info().
		Uint("notification_id", notification.ID).
		Str("recipient", maskEmailAddress(recipient)).
		Msg("notification mailed")
	return nil
}

func notificationSubject(kind string) string {
	switch kind {
	case NotificationJustificationPending:
		return "Justification received"
	case NotificationJustificationApproved:
		return "Justification approved"
	case NotificationJustificationRejected:
		return "Justification rejected"
	default:
		return "Attendance update"
	}
}

func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "***"
	}
	local := parts[0]
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + parts[1]
}
