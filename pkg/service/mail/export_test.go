package mail

import (
	"context"
	"net/smtp"
	"time"
)

// SetSendMail replaces the SMTP session for testing
func (s *SMTPSender) SetSendMail(fn func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.sendMail = fn
}

// BuildMessage is exported for testing
func (s *SMTPSender) BuildMessage(msg *Message, now time.Time) ([]byte, error) {
	return s.buildMessage(msg, now)
}
