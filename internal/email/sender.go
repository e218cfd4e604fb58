// Package email delivers account-lifecycle mail. Delivery is an external
// concern; the account service only depends on the Notifier interface.
package email

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier is the outbound-mail boundary consumed by the account service.
type Notifier interface {
	SendVerification(to, username, code string) error
}

// Sender delivers mail over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSender(host string, port int, username, password, from string) *Sender {
	return &Sender{dialer: gomail.NewDialer(host, port, username, password), from: from}
}

// SendVerification mails the email-confirmation code for a new account.
func (s *Sender) SendVerification(to, username, code string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Confirm your email address by entering this code:</p><p><b>%s</b></p>",
		username, code,
	)
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Verify Your Email Address")
	m.SetBody("text/html", body)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

// LogNotifier stands in when SMTP is not configured: it logs the code
// instead of mailing it. Verification stays advisory either way.
type LogNotifier struct {
	Logger *zap.SugaredLogger
}

func (n LogNotifier) SendVerification(to, username, code string) error {
	n.Logger.Infow("verification mail suppressed (no smtp configured)",
		"to", to, "username", username, "code", code)
	return nil
}
