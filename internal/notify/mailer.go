package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/physiodesk/clinic-api/internal/config"
	"github.com/physiodesk/clinic-api/pkg/logger"
)

// Mailer delivers best-effort patient notifications. It runs outside the
// engine's transactions, fed by the outbox consumer, so a mail failure can
// never roll back a state change.
type Mailer interface {
	SendBookingConfirmation(to, patientName, slot string) error
	SendCancellationNotice(to, patientName, reason string) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func NewMailer(cfg config.SMTPConfig, l *logger.Logger) Mailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		logger: l,
	}
}

func (m *smtpMailer) SendBookingConfirmation(to, patientName, slot string) error {
	subject := "Appointment confirmed"
	body := fmt.Sprintf("Dear %s,\n\nYour physiotherapy appointment is confirmed for %s.\n", patientName, slot)
	return m.send(to, subject, body)
}

func (m *smtpMailer) SendCancellationNotice(to, patientName, reason string) error {
	subject := "Appointment cancelled"
	body := fmt.Sprintf("Dear %s,\n\nYour physiotherapy appointment was cancelled.\nReason: %s\n", patientName, reason)
	return m.send(to, subject, body)
}

func (m *smtpMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error(err, "failed to send notification email", "to", to)
		return err
	}
	return nil
}
