package interfaces

import (
	"context"
	"iter"

	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

// ProfileRepository defines the interface for subscriber profiles and their
// sent history
type ProfileRepository interface {
	// Get retrieves a profile by user ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, userID string) (*model.Profile, error)

	// Create creates a new profile
	Create(ctx context.Context, profile *model.Profile) (*model.Profile, error)

	// Update applies a partial update. Returns ErrNotFound when absent.
	Update(ctx context.Context, userID string, update *model.ProfileUpdate) (*model.Profile, error)

	// List iterates over all profiles. Order is unspecified.
	List(ctx context.Context) iter.Seq2[*model.Profile, error]

	// AppendSentHistory adds article IDs to the user's sent history.
	// Already present IDs are ignored; the history never shrinks.
	AppendSentHistory(ctx context.Context, userID string, articleIDs []string) error

	// SentHistory returns every article ID ever sent to the user
	SentHistory(ctx context.Context, userID string) (model.ArticleSet, error)
}
