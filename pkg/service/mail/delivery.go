package mail

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
)

// Sender defines the interface for email sending
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Delivery renders digests as email and hands them to a Sender
type Delivery struct {
	renderer *Renderer
	sender   Sender
}

var _ interfaces.DeliveryChannel = &Delivery{}

func NewDelivery(renderer *Renderer, sender Sender) *Delivery {
	return &Delivery{
		renderer: renderer,
		sender:   sender,
	}
}

func (d *Delivery) Send(ctx context.Context, digest *model.Digest) error {
	if digest.Email == "" {
		return goerr.New("digest has no recipient", goerr.V("user_id", digest.UserID))
	}

	msg, err := d.renderer.Render(digest)
	if err != nil {
		return err
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		return goerr.Wrap(err, "failed to send digest email",
			goerr.V("user_id", digest.UserID),
			goerr.V("digest_id", digest.ID))
	}

	logging.From(ctx).Info("digest email sent",
		"user_id", digest.UserID,
		"digest_id", digest.ID,
		"articles", len(digest.Articles))
	return nil
}

// LogSender writes emails to the logger instead of sending them. Used for
// local development.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg *Message) error {
	logging.From(ctx).Info("email (not sent)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text))
	return nil
}
