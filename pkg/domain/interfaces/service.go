package interfaces

import (
	"context"

	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

// Embedder turns interests text into an embedding vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DeliveryChannel dispatches a digest to its recipient. A nil error means
// the channel accepted the digest.
type DeliveryChannel interface {
	Send(ctx context.Context, digest *model.Digest) error
}

// Archiver keeps a copy of a delivered digest
type Archiver interface {
	Archive(ctx context.Context, digest *model.Digest) error
}
