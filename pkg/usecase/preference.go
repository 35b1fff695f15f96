package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
)

// DefaultAlpha keeps a single click from moving the preference much
const DefaultAlpha = 0.98

// PreferenceUseCase nudges user vectors toward clicked articles
type PreferenceUseCase struct {
	repo  interfaces.Repository
	alpha float64
	locks *UserLocker
}

// NewPreferenceUseCase creates a PreferenceUseCase. locks may be shared with
// other use cases that mutate the same users; nil creates a private one.
func NewPreferenceUseCase(repo interfaces.Repository, alpha float64, locks *UserLocker) *PreferenceUseCase {
	if locks == nil {
		locks = NewUserLocker()
	}
	return &PreferenceUseCase{
		repo:  repo,
		alpha: alpha,
		locks: locks,
	}
}

// ApplyClickFeedback moves the user's vector toward the article's vector by
// linear interpolation and renormalizes it. Repeated calls compound.
func (uc *PreferenceUseCase) ApplyClickFeedback(ctx context.Context, userID, articleID string) error {
	unlock := uc.locks.Lock(userID)
	defer unlock()

	user, err := uc.repo.Vector().Fetch(ctx, model.NamespaceUsers, userID)
	if err != nil {
		return storeError(err, "failed to fetch user vector", goerr.V(UserIDKey, userID))
	}

	article, err := uc.repo.Vector().Fetch(ctx, model.NamespaceItems, articleID)
	if err != nil {
		return storeError(err, "failed to fetch article vector", goerr.V(ArticleIDKey, articleID))
	}

	values, ok := model.Interpolate(user.Values, article.Values, uc.alpha)
	if !ok {
		return goerr.Wrap(ErrDegenerateVector, "interpolated preference cannot be normalized",
			goerr.V(UserIDKey, userID),
			goerr.V(ArticleIDKey, articleID),
			goerr.V("user_dim", len(user.Values)),
			goerr.V("article_dim", len(article.Values)))
	}

	if err := uc.repo.Vector().Update(ctx, model.NamespaceUsers, userID, values, nil); err != nil {
		return storeError(err, "failed to update user vector", goerr.V(UserIDKey, userID))
	}

	logging.From(ctx).Debug("applied click feedback",
		"user_id", userID,
		"article_id", articleID,
		"alpha", uc.alpha)

	return nil
}

// Article returns the clicked article. Absent items are ErrNotFound.
func (uc *PreferenceUseCase) Article(ctx context.Context, articleID string) (*model.Article, error) {
	v, err := uc.repo.Vector().Fetch(ctx, model.NamespaceItems, articleID)
	if err != nil {
		return nil, storeError(err, "failed to fetch article", goerr.V(ArticleIDKey, articleID))
	}
	return model.ArticleFromVector(v), nil
}
