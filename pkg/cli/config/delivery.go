package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/service/mail"
	"github.com/secmon-lab/hackernyous/pkg/service/slack"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Delivery holds CLI flags selecting and configuring the digest channel
type Delivery struct {
	channel    string
	subject    string
	profileURL string
	smtpHost   string
	smtpPort   int
	smtpUser   string
	smtpPass   string
	smtpFrom   string

	slack Slack
}

// Flags returns CLI flags for delivery configuration
func (x *Delivery) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "delivery",
			Usage:       "Digest delivery channel (smtp, slack or log)",
			Category:    "Delivery",
			Value:       "log",
			Sources:     cli.EnvVars("HACKERNYOUS_DELIVERY"),
			Destination: &x.channel,
		},
		&cli.StringFlag{
			Name:        "mail-subject",
			Usage:       "Subject of digest emails",
			Category:    "Delivery",
			Value:       mail.DefaultSubject,
			Sources:     cli.EnvVars("HACKERNYOUS_MAIL_SUBJECT"),
			Destination: &x.subject,
		},
		&cli.StringFlag{
			Name:        "profile-url",
			Usage:       "URL where subscribers edit their interests, shown in digest emails",
			Category:    "Delivery",
			Sources:     cli.EnvVars("HACKERNYOUS_PROFILE_URL"),
			Destination: &x.profileURL,
		},
		&cli.StringFlag{
			Name:        "smtp-host",
			Usage:       "SMTP server host",
			Category:    "Delivery",
			Sources:     cli.EnvVars("HACKERNYOUS_SMTP_HOST"),
			Destination: &x.smtpHost,
		},
		&cli.IntFlag{
			Name:        "smtp-port",
			Usage:       "SMTP server port",
			Category:    "Delivery",
			Value:       587,
			Sources:     cli.EnvVars("HACKERNYOUS_SMTP_PORT"),
			Destination: &x.smtpPort,
		},
		&cli.StringFlag{
			Name:        "smtp-username",
			Usage:       "SMTP username (PLAIN auth is skipped when empty)",
			Category:    "Delivery",
			Sources:     cli.EnvVars("HACKERNYOUS_SMTP_USERNAME"),
			Destination: &x.smtpUser,
		},
		&cli.StringFlag{
			Name:        "smtp-password",
			Usage:       "SMTP password",
			Category:    "Delivery",
			Sources:     cli.EnvVars("HACKERNYOUS_SMTP_PASSWORD"),
			Destination: &x.smtpPass,
		},
		&cli.StringFlag{
			Name:        "smtp-from",
			Usage:       "Sender address of digest emails",
			Category:    "Delivery",
			Sources:     cli.EnvVars("HACKERNYOUS_SMTP_FROM"),
			Destination: &x.smtpFrom,
		},
	}
	return append(flags, x.slack.Flags()...)
}

func (x Delivery) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("channel", x.channel),
		slog.String("smtp_host", x.smtpHost),
		slog.Int("smtp_port", x.smtpPort),
		slog.String("smtp_from", x.smtpFrom),
		slog.Int("smtp_password.len", len(x.smtpPass)),
		slog.Any("slack", x.slack),
	)
}

// Configure builds the delivery channel
func (x *Delivery) Configure() (interfaces.DeliveryChannel, error) {
	switch x.channel {
	case "smtp":
		renderer, err := x.renderer()
		if err != nil {
			return nil, err
		}
		sender, err := mail.NewSMTPSender(x.smtpHost, x.smtpPort, x.smtpUser, x.smtpPass, x.smtpFrom)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure SMTP sender")
		}
		logging.Default().Info("Using SMTP delivery", "sender", sender)
		return mail.NewDelivery(renderer, sender), nil

	case "slack":
		svc, err := x.slack.Configure()
		if err != nil {
			return nil, err
		}
		logging.Default().Info("Using Slack DM delivery")
		return slack.NewDelivery(svc), nil

	case "log":
		renderer, err := x.renderer()
		if err != nil {
			return nil, err
		}
		logging.Default().Info("Using log delivery (development mode)")
		return mail.NewDelivery(renderer, mail.LogSender{}), nil

	default:
		return nil, goerr.New("invalid delivery channel", goerr.V("delivery", x.channel))
	}
}

func (x *Delivery) renderer() (*mail.Renderer, error) {
	opts := []mail.RendererOption{mail.WithSubject(x.subject)}
	if x.profileURL != "" {
		opts = append(opts, mail.WithProfileURL(x.profileURL))
	}
	renderer, err := mail.NewRenderer(opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create mail renderer")
	}
	return renderer, nil
}
