package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     string
	From     string
	Password string
}

type Mailer struct {
	cfg Config
	log *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// SendSubscriptionEmail tells the meetup owner that someone subscribed.
func (m *Mailer) SendSubscriptionEmail(meetupTitle, subscriberName, subscriberEmail, ownerEmail string) error {
	subject := fmt.Sprintf("New subscription to %s", meetupTitle)
	body := fmt.Sprintf(
		"Hello!\n\n%s <%s> subscribed to your meetup \"%s\".",
		subscriberName, subscriberEmail, meetupTitle,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, ownerEmail, subject, body,
	)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{ownerEmail}, []byte(msg)); err != nil {
		m.log.Warn().Msgf("failed to send email to %s: %v", ownerEmail, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("subscription email sent to %s (meetup: %s)", ownerEmail, meetupTitle)
	return nil
}
