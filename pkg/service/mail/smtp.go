package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultSMTPTimeout bounds one SMTP session when ctx carries no deadline
const DefaultSMTPTimeout = 30 * time.Second

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends emails via SMTP
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     mail.Address
	timeout  time.Duration
	sendMail sendMailFunc
}

type SMTPOption func(*SMTPSender)

// WithSMTPTimeout bounds dialing and the whole SMTP exchange
func WithSMTPTimeout(d time.Duration) SMTPOption {
	return func(s *SMTPSender) {
		s.timeout = d
	}
}

// NewSMTPSender creates a new SMTP sender. from may include a display name,
// e.g. "Hacker Nyousletter <mailman@example.com>".
func NewSMTPSender(host string, port int, username, password, from string, opts ...SMTPOption) (*SMTPSender, error) {
	if host == "" {
		return nil, goerr.New("SMTP host is required")
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid SMTP from address", goerr.V("from", from))
	}

	s := &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     *addr,
		timeout:  DefaultSMTPTimeout,
	}
	s.sendMail = s.deliver
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SMTPSender) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", s.host),
		slog.Int("port", s.port),
		slog.String("username", s.username),
		slog.Int("password.len", len(s.password)),
		slog.String("from", s.from.String()),
	)
}

// Send sends msg as a multipart/alternative email
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "context done before sending email")
	}

	body, err := s.buildMessage(msg, time.Now())
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	if err := s.sendMail(ctx, addr, auth, s.from.Address, []string{msg.To}, body); err != nil {
		return goerr.Wrap(err, "failed to send email", goerr.V("to", msg.To), goerr.V("addr", addr))
	}

	return nil
}

// deliver runs one SMTP session. The connection is closed when ctx is done,
// and every read and write shares one deadline.
func (s *SMTPSender) deliver(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return goerr.Wrap(err, "failed to dial SMTP server")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return goerr.Wrap(err, "failed to set SMTP deadline")
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return goerr.Wrap(err, "failed to start SMTP session")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return goerr.Wrap(err, "failed to start TLS")
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return goerr.New("SMTP server does not support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return goerr.Wrap(err, "SMTP authentication failed")
		}
	}

	if err := c.Mail(from); err != nil {
		return goerr.Wrap(err, "SMTP MAIL rejected")
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return goerr.Wrap(err, "SMTP RCPT rejected", goerr.V("rcpt", rcpt))
		}
	}

	w, err := c.Data()
	if err != nil {
		return goerr.Wrap(err, "SMTP DATA rejected")
	}
	if _, err := w.Write(msg); err != nil {
		return goerr.Wrap(err, "failed to write SMTP message")
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "SMTP message rejected")
	}

	return c.Quit()
}

func (s *SMTPSender) buildMessage(msg *Message, now time.Time) ([]byte, error) {
	boundary := "hn-" + uuid.NewString()

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", p.contentType)
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		b.WriteString("\r\n")

		w := quotedprintable.NewWriter(&b)
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, goerr.Wrap(err, "failed to encode email part")
		}
		if err := w.Close(); err != nil {
			return nil, goerr.Wrap(err, "failed to encode email part")
		}
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return b.Bytes(), nil
}
