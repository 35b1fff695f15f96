package slack

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/slack-go/slack"
)

// maxSummaryBytes keeps a section block well under Slack's 3000 character limit
const maxSummaryBytes = 600

// MaxBlocks is the number of blocks Slack accepts in one message
const MaxBlocks = 50

// Delivery sends digests as Slack direct messages to the member whose email
// matches the profile
type Delivery struct {
	svc Service
}

var _ interfaces.DeliveryChannel = &Delivery{}

func NewDelivery(svc Service) *Delivery {
	return &Delivery{svc: svc}
}

func (d *Delivery) Send(ctx context.Context, digest *model.Digest) error {
	user, err := d.svc.LookupUserByEmail(ctx, digest.Email)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve digest recipient", goerr.V("user_id", digest.UserID))
	}

	channelID, err := d.svc.OpenDirectMessage(ctx, user.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to open DM for digest", goerr.V("user_id", digest.UserID))
	}

	text := fmt.Sprintf("Your Hacker News digest: %d stories", len(digest.Articles))
	if _, err := d.svc.PostMessage(ctx, channelID, BuildDigestBlocks(digest), text); err != nil {
		return goerr.Wrap(err, "failed to post digest", goerr.V("user_id", digest.UserID), goerr.V("digest_id", digest.ID))
	}

	return nil
}

// BuildDigestBlocks renders a digest as a header followed by one section per
// article. Articles beyond MaxBlocks are folded into a trailing context line.
func BuildDigestBlocks(digest *model.Digest) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "Your Hacker News digest", false, false)),
	}

	articles := digest.Articles
	var rest int
	if len(articles) > MaxBlocks-1 {
		// header + sections + overflow line
		shown := MaxBlocks - 2
		rest = len(articles) - shown
		articles = articles[:shown]
	}

	for i, a := range articles {
		var b strings.Builder
		fmt.Fprintf(&b, "*%d. <%s|%s>*  <%s|discussion>", i+1, a.Link, escapeMrkdwn(a.Title), a.HNURL())
		if a.Summary != "" {
			b.WriteString("\n")
			b.WriteString(escapeMrkdwn(truncateToMaxBytes(a.Summary, maxSummaryBytes)))
		}
		blocks = append(blocks,
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, b.String(), false, false), nil, nil))
	}

	if rest > 0 {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("and %d more stories", rest), false, false),
		))
	}

	return blocks
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeMrkdwn(s string) string {
	return mrkdwnEscaper.Replace(s)
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8
// sequence, appending an ellipsis when something was cut
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}

	const ellipsis = "…"
	cut := maxBytes - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
