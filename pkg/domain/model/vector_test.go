package model_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

func unit(values ...float32) []float32 {
	v, ok := model.Normalize(values)
	if !ok {
		panic("zero vector")
	}
	return v
}

func TestNormalize(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		v, ok := model.Normalize([]float32{3, 4})
		gt.B(t, ok).True()
		gt.Value(t, v[0]).Equal(float32(0.6))
		gt.Value(t, v[1]).Equal(float32(0.8))
		gt.B(t, math.Abs(model.Norm(v)-1) < 1e-6).True()
	})

	t.Run("rejects zero vector", func(t *testing.T) {
		v, ok := model.Normalize([]float32{0, 0, 0})
		gt.B(t, ok).False()
		gt.Value(t, v).Nil()
	})

	t.Run("rejects non-finite values", func(t *testing.T) {
		_, ok := model.Normalize([]float32{float32(math.Inf(1)), 1})
		gt.B(t, ok).False()

		_, ok = model.Normalize([]float32{float32(math.NaN()), 1})
		gt.B(t, ok).False()
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := []float32{3, 4}
		_, _ = model.Normalize(in)
		gt.Value(t, in[0]).Equal(float32(3))
	})
}

func TestInterpolate(t *testing.T) {
	u := unit(1, 0, 0)
	a := unit(0, 1, 0)

	t.Run("result has unit norm", func(t *testing.T) {
		for _, alpha := range []float64{0.01, 0.5, 0.98, 0.999} {
			r, ok := model.Interpolate(u, a, alpha)
			gt.B(t, ok).True()
			gt.B(t, math.Abs(model.Norm(r)-1) < 1e-6).True()
		}
	})

	t.Run("alpha close to 1 stays near u", func(t *testing.T) {
		r, ok := model.Interpolate(u, a, 0.999999)
		gt.B(t, ok).True()
		gt.B(t, model.CosineSimilarity(r, u) > 0.999).True()
	})

	t.Run("alpha close to 0 moves to a", func(t *testing.T) {
		r, ok := model.Interpolate(u, a, 0.000001)
		gt.B(t, ok).True()
		gt.B(t, model.CosineSimilarity(r, a) > 0.999).True()
	})

	t.Run("default alpha moves slightly toward a", func(t *testing.T) {
		r, ok := model.Interpolate(u, a, 0.98)
		gt.B(t, ok).True()
		gt.B(t, model.CosineSimilarity(r, a) > model.CosineSimilarity(u, a)).True()
		gt.B(t, model.CosineSimilarity(r, u) > 0.99).True()
	})

	t.Run("opposite vectors at midpoint collapse", func(t *testing.T) {
		_, ok := model.Interpolate(unit(1, 0), unit(-1, 0), 0.5)
		gt.B(t, ok).False()
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, ok := model.Interpolate(unit(1, 0), unit(1, 0, 0), 0.5)
		gt.B(t, ok).False()
	})

	t.Run("empty vectors", func(t *testing.T) {
		_, ok := model.Interpolate(nil, nil, 0.5)
		gt.B(t, ok).False()
	})
}

func TestCosineSimilarity(t *testing.T) {
	gt.B(t, math.Abs(model.CosineSimilarity([]float32{1, 0}, []float32{2, 0})-1) < 1e-9).True()
	gt.B(t, math.Abs(model.CosineSimilarity([]float32{1, 0}, []float32{0, 1})) < 1e-9).True()
	gt.Value(t, model.CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})).Equal(0.0)
	gt.Value(t, model.CosineSimilarity([]float32{0, 0}, []float32{1, 0})).Equal(0.0)
}

func TestVector_Copy(t *testing.T) {
	v := &model.Vector{
		ID:        "1",
		Namespace: model.NamespaceItems,
		Values:    []float32{1, 2},
		Metadata:  map[string]any{"title": "x"},
	}
	c := v.Copy()
	c.Values[0] = 9
	c.Metadata["title"] = "y"

	gt.Value(t, v.Values[0]).Equal(float32(1))
	gt.Value(t, v.Metadata["title"]).Equal(any("x"))
}
