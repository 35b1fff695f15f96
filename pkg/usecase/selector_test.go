package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/repository/memory"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
)

// seedFan stores n articles whose similarity to (1, 0) decreases with the index
func seedFan(t *testing.T, repo *memory.Memory, n int) {
	t.Helper()
	for i := range n {
		seedArticle(t, repo, fmt.Sprintf("a%02d", i), fmt.Sprintf("Article %d", i), 1, float32(i)*0.1)
	}
}

func TestSelectForUser(t *testing.T) {
	ctx := context.Background()
	user := &model.User{
		Profile: dailyProfile("alice", time.Time{}),
		Values:  []float32{1, 0},
	}

	t.Run("returns nearest articles in descending order", func(t *testing.T) {
		repo := newMemoryRepo(t)
		seedFan(t, repo, 5)

		uc := usecase.NewSelectorUseCase(repo)
		matches, err := uc.SelectForUser(ctx, user, 100, nil)
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(5).Required()

		for i, m := range matches {
			gt.Value(t, m.ID).Equal(fmt.Sprintf("a%02d", i))
			if i > 0 {
				gt.Bool(t, matches[i-1].Score >= m.Score).True()
			}
		}
	})

	t.Run("never returns excluded articles", func(t *testing.T) {
		repo := newMemoryRepo(t)
		seedFan(t, repo, 6)

		exclude := model.NewArticleSet("a00", "a02", "a04")
		matches, err := usecase.NewSelectorUseCase(repo).SelectForUser(ctx, user, 100, exclude)
		gt.NoError(t, err).Required()

		var ids []string
		for _, m := range matches {
			gt.Bool(t, exclude.Has(m.ID)).False()
			ids = append(ids, m.ID)
		}
		gt.Array(t, ids).Equal([]string{"a01", "a03", "a05"})
	})

	t.Run("length is capped by sent count", func(t *testing.T) {
		repo := newMemoryRepo(t)
		seedFan(t, repo, 20)

		limited := &model.User{Profile: dailyProfile("alice", time.Time{}), Values: []float32{1, 0}}
		limited.Profile.SentCount = 3

		matches, err := usecase.NewSelectorUseCase(repo).SelectForUser(ctx, limited, 100, nil)
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(3)
	})

	t.Run("zero sent count selects nothing", func(t *testing.T) {
		repo := newMemoryRepo(t)
		seedFan(t, repo, 5)

		muted := &model.User{Profile: dailyProfile("alice", time.Time{}), Values: []float32{1, 0}}
		muted.Profile.SentCount = 0

		matches, err := usecase.NewSelectorUseCase(repo).SelectForUser(ctx, muted, 100, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, matches).Nil()
	})

	t.Run("length is capped by pool size", func(t *testing.T) {
		repo := newMemoryRepo(t)
		seedFan(t, repo, 20)

		matches, err := usecase.NewSelectorUseCase(repo).SelectForUser(ctx, user, 4, nil)
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(4)
	})

	t.Run("exclusion applies within the pool only", func(t *testing.T) {
		repo := newMemoryRepo(t)
		seedFan(t, repo, 6)

		// The pool holds the 3 nearest, all already sent
		exclude := model.NewArticleSet("a00", "a01", "a02")
		matches, err := usecase.NewSelectorUseCase(repo).SelectForUser(ctx, user, 3, exclude)
		gt.NoError(t, err).Required()
		gt.Value(t, matches).Nil()
	})

	t.Run("empty store is an empty selection", func(t *testing.T) {
		repo := newMemoryRepo(t)

		matches, err := usecase.NewSelectorUseCase(repo).SelectForUser(ctx, user, 100, nil)
		gt.NoError(t, err)
		gt.Value(t, matches).Nil()
	})

	t.Run("query failure is store unavailable", func(t *testing.T) {
		base := newMemoryRepo(t)
		repo := &repoWithVector{
			Repository: base,
			vector:     &failingVectorRepository{VectorRepository: base.Vector(), err: errStoreDown},
		}

		_, err := usecase.NewSelectorUseCase(repo).SelectForUser(ctx, user, 100, nil)
		gt.Error(t, err).Is(usecase.ErrStoreUnavailable)
		gt.Error(t, err).Is(errStoreDown)
	})
}
