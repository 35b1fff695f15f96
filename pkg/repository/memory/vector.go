package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

type vectorRepository struct {
	mu      sync.RWMutex
	entries map[model.Namespace]map[string]*model.Vector
}

func newVectorRepository() *vectorRepository {
	return &vectorRepository{
		entries: make(map[model.Namespace]map[string]*model.Vector),
	}
}

func (r *vectorRepository) ensureNamespace(ns model.Namespace) map[string]*model.Vector {
	bucket, exists := r.entries[ns]
	if !exists {
		bucket = make(map[string]*model.Vector)
		r.entries[ns] = bucket
	}
	return bucket
}

func (r *vectorRepository) Fetch(ctx context.Context, ns model.Namespace, id string) (*model.Vector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, exists := r.entries[ns][id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "vector not found", goerr.V("namespace", ns), goerr.V("id", id))
	}

	return v.Copy(), nil
}

func (r *vectorRepository) Upsert(ctx context.Context, vector *model.Vector) error {
	if !vector.Namespace.IsValid() {
		return goerr.New("invalid namespace", goerr.V("namespace", vector.Namespace))
	}
	if vector.ID == "" {
		return goerr.New("vector ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureNamespace(vector.Namespace)[vector.ID] = vector.Copy()
	return nil
}

func (r *vectorRepository) Update(ctx context.Context, ns model.Namespace, id string, values []float32, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.entries[ns][id]
	if !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "vector not found", goerr.V("namespace", ns), goerr.V("id", id))
	}

	if values != nil {
		v.Values = make([]float32, len(values))
		copy(v.Values, values)
	}
	if metadata != nil {
		if v.Metadata == nil {
			v.Metadata = make(map[string]any, len(metadata))
		}
		for k, val := range metadata {
			v.Metadata[k] = val
		}
	}

	return nil
}

func (r *vectorRepository) QueryNearest(ctx context.Context, ns model.Namespace, query []float32, k int) ([]*model.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*model.Match
	for id, v := range r.entries[ns] {
		if len(v.Values) == 0 {
			continue
		}
		candidates = append(candidates, &model.Match{
			ID:    id,
			Score: model.CosineSimilarity(query, v.Values),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Score > candidates[j].Score
	})

	if k < 0 {
		k = 0
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	return candidates[:k], nil
}
