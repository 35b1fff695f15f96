package embedding

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

// Client is the part of gollem.LLMClient the embedder needs
type Client interface {
	GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

// Service turns interests text into unit-length embedding vectors
type Service struct {
	client    Client
	dimension int
}

var _ interfaces.Embedder = &Service{}

// Option is a functional option for Service configuration
type Option func(*Service)

// WithDimension sets the requested embedding dimension. It must match the
// vector index dimension of the items namespace.
func WithDimension(dim int) Option {
	return func(s *Service) {
		s.dimension = dim
	}
}

// New creates a new embedding service with the provided LLM client
func New(client Client, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, goerr.New("LLM client is required")
	}

	s := &Service{
		client:    client,
		dimension: model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Embed generates a normalized embedding for text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.New("text to embed is empty")
	}

	embeddings, err := s.client.GenerateEmbedding(ctx, s.dimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding", goerr.V("dimension", s.dimension))
	}

	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	// Convert float64 to float32
	values := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		values[i] = float32(v)
	}

	normalized, ok := model.Normalize(values)
	if !ok {
		return nil, goerr.New("embedding has no direction", goerr.V("dimension", len(values)))
	}

	return normalized, nil
}
