package slack

import (
	"context"

	"github.com/slack-go/slack"
)

// Service provides the subset of the Slack API used to deliver digests as
// direct messages
type Service interface {
	// LookupUserByEmail resolves a workspace member by email (with caching)
	LookupUserByEmail(ctx context.Context, email string) (*User, error)

	// OpenDirectMessage opens (or reuses) the DM channel with the user and
	// returns its channel ID
	OpenDirectMessage(ctx context.Context, userID string) (string, error)

	// PostMessage posts a Block Kit message to a channel and returns the message timestamp.
	// The text parameter is used as a fallback for notifications.
	PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error)
}

// User represents a Slack user
type User struct {
	ID       string
	Name     string
	RealName string
	Email    string
}
