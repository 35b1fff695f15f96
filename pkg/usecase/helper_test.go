package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/secmon-lab/hackernyous/pkg/repository/memory"
)

// mockDelivery is a mock DeliveryChannel recording every accepted digest
type mockDelivery struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, digest *model.Digest) error
	sent   []*model.Digest
}

func (m *mockDelivery) Send(ctx context.Context, digest *model.Digest) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, digest); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, digest)
	return nil
}

// mockEmbedder is a mock Embedder counting calls
type mockEmbedder struct {
	mu      sync.Mutex
	embedFn func(ctx context.Context, text string) ([]float32, error)
	calls   []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	return m.embedFn(ctx, text)
}

// mockArchiver is a mock Archiver
type mockArchiver struct {
	mu        sync.Mutex
	archiveFn func(ctx context.Context, digest *model.Digest) error
	archived  []*model.Digest
}

func (m *mockArchiver) Archive(ctx context.Context, digest *model.Digest) error {
	m.mu.Lock()
	m.archived = append(m.archived, digest)
	m.mu.Unlock()
	if m.archiveFn != nil {
		return m.archiveFn(ctx, digest)
	}
	return nil
}

// failingVectorRepository fails QueryNearest and delegates everything else
type failingVectorRepository struct {
	interfaces.VectorRepository
	err error
}

func (r *failingVectorRepository) QueryNearest(ctx context.Context, ns model.Namespace, query []float32, k int) ([]*model.Match, error) {
	return nil, r.err
}

// repoWithVector swaps the vector repository of a Repository
type repoWithVector struct {
	interfaces.Repository
	vector interfaces.VectorRepository
}

func (r *repoWithVector) Vector() interfaces.VectorRepository {
	return r.vector
}

var errStoreDown = errors.New("store down")

func mustUnit(t *testing.T, values ...float32) []float32 {
	t.Helper()
	v, ok := model.Normalize(values)
	gt.Bool(t, ok).True()
	return v
}

func seedArticle(t *testing.T, repo interfaces.Repository, id, title string, values ...float32) {
	t.Helper()
	gt.NoError(t, repo.Vector().Upsert(context.Background(), &model.Vector{
		ID:        id,
		Namespace: model.NamespaceItems,
		Values:    mustUnit(t, values...),
		Metadata: map[string]any{
			model.ArticleMetaTitle:   title,
			model.ArticleMetaURL:     "https://example.com/" + id,
			model.ArticleMetaPassage: title + ". Summary of " + id,
		},
	})).Required()
}

func seedUser(t *testing.T, repo interfaces.Repository, profile *model.Profile, values ...float32) {
	t.Helper()
	ctx := context.Background()

	gt.NoError(t, repo.Vector().Upsert(ctx, &model.Vector{
		ID:        profile.UserID,
		Namespace: model.NamespaceUsers,
		Values:    mustUnit(t, values...),
		Metadata:  map[string]any{model.UserMetaDescription: profile.Interests},
	})).Required()

	_, err := repo.Profile().Create(ctx, profile)
	gt.NoError(t, err).Required()
}

func dailyProfile(userID string, lastUpdated time.Time) *model.Profile {
	return &model.Profile{
		UserID:      userID,
		Email:       userID + "@example.com",
		Frequency:   types.FrequencyDaily,
		Interests:   "databases",
		LastUpdated: lastUpdated,
		SentCount:   model.DefaultSentCount,
	}
}

func newMemoryRepo(t *testing.T) *memory.Memory {
	t.Helper()
	return memory.New()
}
