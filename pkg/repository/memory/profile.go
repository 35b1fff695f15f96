package memory

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

type profileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*model.Profile
	sent     map[string]model.ArticleSet
}

func newProfileRepository() *profileRepository {
	return &profileRepository{
		profiles: make(map[string]*model.Profile),
		sent:     make(map[string]model.ArticleSet),
	}
}

func (r *profileRepository) Get(ctx context.Context, userID string) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.profiles[userID]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "profile not found", goerr.V("userID", userID))
	}

	return p.Copy(), nil
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	if profile.UserID == "" {
		return nil, goerr.New("user ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[profile.UserID]; exists {
		return nil, goerr.New("profile already exists", goerr.V("userID", profile.UserID))
	}

	created := profile.Copy()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.profiles[created.UserID] = created
	return created.Copy(), nil
}

func (r *profileRepository) Update(ctx context.Context, userID string, update *model.ProfileUpdate) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.profiles[userID]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "profile not found", goerr.V("userID", userID))
	}

	update.Apply(p)
	p.UpdatedAt = time.Now().UTC()

	return p.Copy(), nil
}

func (r *profileRepository) List(ctx context.Context) iter.Seq2[*model.Profile, error] {
	return func(yield func(*model.Profile, error) bool) {
		// Snapshot under lock so callers may write back while iterating
		r.mu.RLock()
		snapshot := make([]*model.Profile, 0, len(r.profiles))
		for _, p := range r.profiles {
			snapshot = append(snapshot, p.Copy())
		}
		r.mu.RUnlock()

		for _, p := range snapshot {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (r *profileRepository) AppendSentHistory(ctx context.Context, userID string, articleIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[userID]; !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "profile not found", goerr.V("userID", userID))
	}

	set, exists := r.sent[userID]
	if !exists {
		set = model.NewArticleSet()
		r.sent[userID] = set
	}
	set.Add(articleIDs...)

	return nil
}

func (r *profileRepository) SentHistory(ctx context.Context, userID string) (model.ArticleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return model.NewArticleSet(r.sent[userID].IDs()...), nil
}
