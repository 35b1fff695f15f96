package usecase_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
)

func TestErrors_ErrorsAreDistinct(t *testing.T) {
	all := []error{
		usecase.ErrNotFound,
		usecase.ErrDegenerateVector,
		usecase.ErrStoreUnavailable,
		usecase.ErrDeliveryFailed,
		usecase.ErrValidation,
	}

	for i, a := range all {
		for j, b := range all {
			gt.Value(t, errors.Is(a, b)).Equal(i == j)
		}
	}
}

func TestStoreError(t *testing.T) {
	t.Run("adapter not found becomes ErrNotFound", func(t *testing.T) {
		cause := goerr.Wrap(interfaces.ErrNotFound, "vector not found")
		err := usecase.StoreError(cause, "failed to fetch")

		gt.Error(t, err).Is(usecase.ErrNotFound)
		gt.Error(t, err).Is(interfaces.ErrNotFound)
		gt.Bool(t, errors.Is(err, usecase.ErrStoreUnavailable)).False()
	})

	t.Run("other failures become ErrStoreUnavailable", func(t *testing.T) {
		err := usecase.StoreError(errStoreDown, "failed to fetch")

		gt.Error(t, err).Is(usecase.ErrStoreUnavailable)
		gt.Error(t, err).Is(errStoreDown)
		gt.Bool(t, errors.Is(err, usecase.ErrNotFound)).False()
	})
}
