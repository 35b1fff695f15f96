package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

type vectorRepository struct {
	db *sql.DB
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *vectorRepository) Fetch(ctx context.Context, ns model.Namespace, id string) (*model.Vector, error) {
	return fetchVector(ctx, r.db, ns, id)
}

func fetchVector(ctx context.Context, q rowQuerier, ns model.Namespace, id string) (*model.Vector, error) {
	var vals, meta string
	err := q.QueryRowContext(ctx,
		`SELECT vals, metadata FROM vectors WHERE namespace = ? AND id = ?`,
		ns.String(), id,
	).Scan(&vals, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "vector not found", goerr.V("namespace", ns), goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get vector", goerr.V("namespace", ns), goerr.V("id", id))
	}

	v := &model.Vector{ID: id, Namespace: ns}
	if err := json.Unmarshal([]byte(vals), &v.Values); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal vector values", goerr.V("id", id))
	}
	if err := json.Unmarshal([]byte(meta), &v.Metadata); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal vector metadata", goerr.V("id", id))
	}
	if len(v.Values) == 0 {
		v.Values = nil
	}
	if len(v.Metadata) == 0 {
		v.Metadata = nil
	}

	return v, nil
}

func (r *vectorRepository) Upsert(ctx context.Context, vector *model.Vector) error {
	if !vector.Namespace.IsValid() {
		return goerr.New("invalid namespace", goerr.V("namespace", vector.Namespace))
	}
	if vector.ID == "" {
		return goerr.New("vector ID is required")
	}

	vals, meta, err := encodeVector(vector.Values, vector.Metadata)
	if err != nil {
		return goerr.Wrap(err, "failed to encode vector", goerr.V("id", vector.ID))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO vectors (namespace, id, vals, metadata) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, id) DO UPDATE SET
			vals = excluded.vals,
			metadata = excluded.metadata`,
		vector.Namespace.String(), vector.ID, vals, meta,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert vector", goerr.V("namespace", vector.Namespace), goerr.V("id", vector.ID))
	}

	return nil
}

// Update merges values and metadata into the stored vector in one transaction
func (r *vectorRepository) Update(ctx context.Context, ns model.Namespace, id string, values []float32, metadata map[string]any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	current, err := fetchVector(ctx, tx, ns, id)
	if err != nil {
		return err
	}

	if values != nil {
		current.Values = values
	}
	if metadata != nil {
		if current.Metadata == nil {
			current.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			current.Metadata[k] = v
		}
	}

	vals, meta, err := encodeVector(current.Values, current.Metadata)
	if err != nil {
		return goerr.Wrap(err, "failed to encode vector", goerr.V("id", id))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE vectors SET vals = ?, metadata = ? WHERE namespace = ? AND id = ?`,
		vals, meta, ns.String(), id,
	); err != nil {
		return goerr.Wrap(err, "failed to update vector", goerr.V("namespace", ns), goerr.V("id", id))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit vector update", goerr.V("id", id))
	}
	return nil
}

func (r *vectorRepository) QueryNearest(ctx context.Context, ns model.Namespace, query []float32, k int) ([]*model.Match, error) {
	if k <= 0 {
		return []*model.Match{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, vals FROM vectors WHERE namespace = ?`, ns.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query vectors", goerr.V("namespace", ns))
	}
	defer func() { _ = rows.Close() }()

	var candidates []*model.Match
	for rows.Next() {
		var id, vals string
		if err := rows.Scan(&id, &vals); err != nil {
			return nil, goerr.Wrap(err, "failed to scan vector row")
		}

		var values []float32
		if err := json.Unmarshal([]byte(vals), &values); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal vector values", goerr.V("id", id))
		}
		if len(values) == 0 {
			continue
		}

		candidates = append(candidates, &model.Match{
			ID:    id,
			Score: model.CosineSimilarity(query, values),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate vectors", goerr.V("namespace", ns))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Score > candidates[j].Score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

func encodeVector(values []float32, metadata map[string]any) (string, string, error) {
	if values == nil {
		values = []float32{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	vals, err := json.Marshal(values)
	if err != nil {
		return "", "", err
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", "", err
	}
	return string(vals), string(meta), nil
}
