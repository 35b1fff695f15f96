package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

// DefaultCandidatePool is how many nearest articles are considered per user
const DefaultCandidatePool = 100

// SelectorUseCase picks unsent articles for a user. It never writes.
type SelectorUseCase struct {
	repo interfaces.Repository
}

func NewSelectorUseCase(repo interfaces.Repository) *SelectorUseCase {
	return &SelectorUseCase{repo: repo}
}

// SelectForUser returns up to min(poolSize, SentCount) article matches nearest
// to the user's vector, skipping IDs in exclude, by descending score. An
// exhausted pool or a SentCount of zero yields a nil slice and a nil error.
func (uc *SelectorUseCase) SelectForUser(ctx context.Context, user *model.User, poolSize int, exclude model.ArticleSet) ([]*model.Match, error) {
	limit := min(user.Profile.SentCount, poolSize)
	if limit <= 0 {
		return nil, nil
	}

	matches, err := uc.repo.Vector().QueryNearest(ctx, model.NamespaceItems, user.Values, poolSize)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(ErrStoreUnavailable, err), "failed to query nearest articles",
			goerr.V(UserIDKey, user.Profile.UserID),
			goerr.V("pool_size", poolSize))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	var selected []*model.Match
	for _, m := range matches {
		if exclude.Has(m.ID) {
			continue
		}
		selected = append(selected, m)
		if len(selected) == limit {
			break
		}
	}

	return selected, nil
}
