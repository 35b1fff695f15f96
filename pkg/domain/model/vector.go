package model

import (
	"math"
)

// EmbeddingDimension is the dimension of the embedding vector
// Gemini text-embedding-004 uses 768 dimensions
const EmbeddingDimension = 768

// Namespace is a logical partition of the vector index. IDs are only unique
// within a namespace.
type Namespace string

const (
	NamespaceUsers Namespace = "users"
	NamespaceItems Namespace = "items"
)

// IsValid checks if the namespace is one of the known partitions
func (n Namespace) IsValid() bool {
	return n == NamespaceUsers || n == NamespaceItems
}

// String returns the string representation of the namespace
func (n Namespace) String() string {
	return string(n)
}

// Vector is one record of the vector index
type Vector struct {
	ID        string
	Namespace Namespace
	Values    []float32
	Metadata  map[string]any
}

// Copy returns a deep copy of the vector. Metadata values are copied shallowly.
func (v *Vector) Copy() *Vector {
	copied := &Vector{
		ID:        v.ID,
		Namespace: v.Namespace,
	}
	if v.Values != nil {
		copied.Values = make([]float32, len(v.Values))
		copy(copied.Values, v.Values)
	}
	if v.Metadata != nil {
		copied.Metadata = make(map[string]any, len(v.Metadata))
		for k, val := range v.Metadata {
			copied.Metadata[k] = val
		}
	}
	return copied
}

// Match is one result of a similarity query
type Match struct {
	ID    string
	Score float64
}

// Norm returns the L2 norm of values
func Norm(values []float32) float64 {
	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns values scaled to unit length. ok is false when the norm is
// zero or not finite, in which case the returned slice is nil.
func Normalize(values []float32) ([]float32, bool) {
	m := Norm(values)
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return nil, false
	}

	result := make([]float32, len(values))
	for i, v := range values {
		result[i] = float32(float64(v) / m)
	}
	return result, true
}

// Interpolate computes alpha*u + (1-alpha)*a and normalizes the result to unit
// length. ok is false when the dimensions differ or the result collapses to a
// zero or non-finite norm.
func Interpolate(u, a []float32, alpha float64) ([]float32, bool) {
	if len(u) == 0 || len(u) != len(a) {
		return nil, false
	}

	r := make([]float32, len(u))
	for i := range u {
		r[i] = float32(alpha*float64(u[i]) + (1-alpha)*float64(a[i]))
	}
	return Normalize(r)
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when the
// dimensions differ or either vector has zero length.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
