package slack_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/service/slack"
	slackapi "github.com/slack-go/slack"
)

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates service when token is provided", func(t *testing.T) {
		svc, err := slack.New("test-token")
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
	})
}

// newFakeSlack serves the Web API methods used for DM delivery
func newFakeSlack(t *testing.T, lookups *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/users.lookupByEmail", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"user": map[string]any{
				"id":        "U123",
				"name":      "alice",
				"real_name": "Alice",
				"profile":   map[string]any{"email": "alice@example.com"},
			},
		})
	})
	mux.HandleFunc("/conversations.open", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"channel": map[string]any{"id": "D456"},
		})
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"channel": "D456",
			"ts":      "1700000000.000100",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FakeServer(t *testing.T) {
	ctx := context.Background()
	var lookups atomic.Int32
	srv := newFakeSlack(t, &lookups)

	svc, err := slack.New("xoxb-test", slack.WithAPIURL(srv.URL+"/"), slack.WithCacheTTL(time.Minute))
	gt.NoError(t, err).Required()

	t.Run("LookupUserByEmail caches by email", func(t *testing.T) {
		user, err := svc.LookupUserByEmail(ctx, "alice@example.com")
		gt.NoError(t, err).Required()
		gt.Value(t, user.ID).Equal("U123")
		gt.Value(t, user.RealName).Equal("Alice")

		again, err := svc.LookupUserByEmail(ctx, "Alice@Example.com")
		gt.NoError(t, err).Required()
		gt.Value(t, again.ID).Equal("U123")
		gt.Value(t, lookups.Load()).Equal(int32(1))
	})

	t.Run("OpenDirectMessage returns channel ID", func(t *testing.T) {
		channelID, err := svc.OpenDirectMessage(ctx, "U123")
		gt.NoError(t, err).Required()
		gt.Value(t, channelID).Equal("D456")
	})

	t.Run("PostMessage returns timestamp", func(t *testing.T) {
		ts, err := svc.PostMessage(ctx, "D456", nil, "hello")
		gt.NoError(t, err).Required()
		gt.Value(t, ts).Equal("1700000000.000100")
	})
}

// mockService is a mock Slack Service
type mockService struct {
	lookupFn func(ctx context.Context, email string) (*slack.User, error)
	posted   []string
	blocks   [][]slackapi.Block
}

func (m *mockService) LookupUserByEmail(ctx context.Context, email string) (*slack.User, error) {
	return m.lookupFn(ctx, email)
}

func (m *mockService) OpenDirectMessage(ctx context.Context, userID string) (string, error) {
	return "D-" + userID, nil
}

func (m *mockService) PostMessage(ctx context.Context, channelID string, blocks []slackapi.Block, text string) (string, error) {
	m.posted = append(m.posted, channelID)
	m.blocks = append(m.blocks, blocks)
	return "1.0", nil
}

func testDigest() *model.Digest {
	return &model.Digest{
		ID:     "digest-1",
		UserID: "alice",
		Email:  "alice@example.com",
		Articles: []*model.Article{
			{ID: "1", Title: "Rust <3 Go", URL: "https://example.com/1", Summary: "A & B", Link: "https://hn.example.com/r/tok1"},
			{ID: "2", Title: "SQLite tricks", URL: "https://example.com/2", Link: "https://hn.example.com/r/tok2"},
		},
	}
}

func TestDelivery_Send(t *testing.T) {
	t.Run("posts digest to the member's DM", func(t *testing.T) {
		svc := &mockService{
			lookupFn: func(ctx context.Context, email string) (*slack.User, error) {
				gt.Value(t, email).Equal("alice@example.com")
				return &slack.User{ID: "U1"}, nil
			},
		}

		err := slack.NewDelivery(svc).Send(context.Background(), testDigest())
		gt.NoError(t, err).Required()
		gt.Array(t, svc.posted).Equal([]string{"D-U1"})
		// header + one section per article
		gt.Array(t, svc.blocks[0]).Length(3)
	})

	t.Run("unknown member fails delivery", func(t *testing.T) {
		svc := &mockService{
			lookupFn: func(ctx context.Context, email string) (*slack.User, error) {
				return nil, errors.New("users_not_found")
			},
		}

		err := slack.NewDelivery(svc).Send(context.Background(), testDigest())
		gt.Error(t, err)
		gt.Array(t, svc.posted).Length(0)
	})
}

func TestBuildDigestBlocks(t *testing.T) {
	t.Run("one section per article", func(t *testing.T) {
		digest := testDigest()
		blocks := slack.BuildDigestBlocks(digest)
		gt.Array(t, blocks).Length(1 + len(digest.Articles)).Required()

		section, ok := blocks[1].(*slackapi.SectionBlock)
		gt.Bool(t, ok).True()
		gt.String(t, section.Text.Text).Contains("<https://hn.example.com/r/tok1|Rust &lt;3 Go>")
		gt.String(t, section.Text.Text).Contains("A &amp; B")
		gt.String(t, section.Text.Text).Contains(digest.Articles[0].HNURL())
	})

	t.Run("large digests stay within the block limit", func(t *testing.T) {
		digest := testDigest()
		digest.Articles = nil
		for i := range 60 {
			digest.Articles = append(digest.Articles, &model.Article{
				ID:    fmt.Sprintf("%d", i),
				Title: fmt.Sprintf("Story %d", i),
				Link:  fmt.Sprintf("https://example.com/%d", i),
			})
		}

		blocks := slack.BuildDigestBlocks(digest)
		gt.Array(t, blocks).Length(slack.MaxBlocks).Required()

		last, ok := blocks[len(blocks)-1].(*slackapi.ContextBlock)
		gt.Bool(t, ok).True()
		text, ok := last.ContextElements.Elements[0].(*slackapi.TextBlockObject)
		gt.Bool(t, ok).True()
		gt.Value(t, text.Text).Equal("and 12 more stories")
	})

	t.Run("exactly at the limit needs no overflow line", func(t *testing.T) {
		digest := testDigest()
		digest.Articles = nil
		for i := range slack.MaxBlocks - 1 {
			digest.Articles = append(digest.Articles, &model.Article{ID: fmt.Sprintf("%d", i), Title: "t", Link: "https://example.com"})
		}

		blocks := slack.BuildDigestBlocks(digest)
		gt.Array(t, blocks).Length(slack.MaxBlocks).Required()
		_, ok := blocks[len(blocks)-1].(*slackapi.SectionBlock)
		gt.Bool(t, ok).True()
	})
}

func TestTruncateToMaxBytes(t *testing.T) {
	gt.Value(t, slack.TruncateToMaxBytes("short", 10)).Equal("short")

	long := strings.Repeat("a", 20)
	got := slack.TruncateToMaxBytes(long, 10)
	gt.Bool(t, len(got) <= 10).True()
	gt.Bool(t, strings.HasSuffix(got, "…")).True()

	// Multi-byte runes are never split
	jp := strings.Repeat("あ", 10)
	got = slack.TruncateToMaxBytes(jp, 10)
	gt.Bool(t, len(got) <= 10).True()
	gt.Value(t, got).Equal("ああ…")
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	if token == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN is not set")
	}
	email := os.Getenv("TEST_SLACK_USER_EMAIL")
	if email == "" {
		t.Skip("TEST_SLACK_USER_EMAIL is not set")
	}

	svc, err := slack.New(token)
	gt.NoError(t, err).Required()

	d := testDigest()
	d.Email = email
	gt.NoError(t, slack.NewDelivery(svc).Send(context.Background(), d))
}
