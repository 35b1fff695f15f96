package interfaces

import (
	"context"

	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

// VectorRepository defines the interface for the vector index
type VectorRepository interface {
	// Fetch retrieves a vector by ID. Returns ErrNotFound when absent.
	Fetch(ctx context.Context, ns model.Namespace, id string) (*model.Vector, error)

	// Upsert creates or replaces a vector
	Upsert(ctx context.Context, vector *model.Vector) error

	// Update replaces values when values is non-nil and merges metadata keys
	// when metadata is non-nil. Returns ErrNotFound when absent.
	Update(ctx context.Context, ns model.Namespace, id string, values []float32, metadata map[string]any) error

	// QueryNearest performs vector similarity search using cosine distance.
	// Returns up to k matches ordered by descending score.
	QueryNearest(ctx context.Context, ns model.Namespace, query []float32, k int) ([]*model.Match, error)
}
