package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const distanceField = "Distance"

// vectorDoc is the Firestore document representation of model.Vector.
// Values is stored as firestore.Vector32 for FindNearest vector search.
// Each namespace is its own collection, so IDs never collide across namespaces.
type vectorDoc struct {
	ID       string             `firestore:"ID"`
	Values   firestore.Vector32 `firestore:"Values,omitempty"`
	Metadata map[string]any     `firestore:"Metadata,omitempty"`
}

func toVectorDoc(v *model.Vector) *vectorDoc {
	doc := &vectorDoc{
		ID:       v.ID,
		Metadata: v.Metadata,
	}
	if len(v.Values) > 0 {
		doc.Values = firestore.Vector32(v.Values)
	}
	return doc
}

func fromVectorDoc(ns model.Namespace, d *vectorDoc) *model.Vector {
	v := &model.Vector{
		ID:        d.ID,
		Namespace: ns,
		Metadata:  d.Metadata,
	}
	if len(d.Values) > 0 {
		v.Values = []float32(d.Values)
	}
	return v
}

type vectorRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newVectorRepository(client *firestore.Client) *vectorRepository {
	return &vectorRepository{client: client}
}

func (r *vectorRepository) collection(ns model.Namespace) *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.collectionPrefix, ns.String()))
}

func (r *vectorRepository) Fetch(ctx context.Context, ns model.Namespace, id string) (*model.Vector, error) {
	doc, err := r.collection(ns).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "vector not found", goerr.V("namespace", ns), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get vector", goerr.V("namespace", ns), goerr.V("id", id))
	}

	var d vectorDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal vector", goerr.V("namespace", ns), goerr.V("id", id))
	}

	return fromVectorDoc(ns, &d), nil
}

func (r *vectorRepository) Upsert(ctx context.Context, vector *model.Vector) error {
	if !vector.Namespace.IsValid() {
		return goerr.New("invalid namespace", goerr.V("namespace", vector.Namespace))
	}
	if vector.ID == "" {
		return goerr.New("vector ID is required")
	}

	docRef := r.collection(vector.Namespace).Doc(vector.ID)
	if _, err := docRef.Set(ctx, toVectorDoc(vector)); err != nil {
		return goerr.Wrap(err, "failed to upsert vector", goerr.V("namespace", vector.Namespace), goerr.V("id", vector.ID))
	}

	return nil
}

func (r *vectorRepository) Update(ctx context.Context, ns model.Namespace, id string, values []float32, metadata map[string]any) error {
	var updates []firestore.Update
	if values != nil {
		updates = append(updates, firestore.Update{Path: "Values", Value: firestore.Vector32(values)})
	}
	for k, v := range metadata {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"Metadata", k}, Value: v})
	}
	if len(updates) == 0 {
		// Nothing to write, but the contract still reports absence
		_, err := r.Fetch(ctx, ns, id)
		return err
	}

	if _, err := r.collection(ns).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "vector not found", goerr.V("namespace", ns), goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to update vector", goerr.V("namespace", ns), goerr.V("id", id))
	}

	return nil
}

func (r *vectorRepository) QueryNearest(ctx context.Context, ns model.Namespace, query []float32, k int) ([]*model.Match, error) {
	if k <= 0 {
		return []*model.Match{}, nil
	}

	vq := r.collection(ns).
		FindNearest("Values", firestore.Vector32(query), k, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.Match, 0, k)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results", goerr.V("namespace", ns))
		}

		// Cosine distance is 1 - cosine similarity
		distance, _ := doc.Data()[distanceField].(float64)
		matches = append(matches, &model.Match{
			ID:    doc.Ref.ID,
			Score: 1 - distance,
		})
	}

	return matches, nil
}
