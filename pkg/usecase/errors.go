package usecase

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
)

// Sentinel errors for use case layer
var (
	// ErrNotFound means a referenced vector or profile is absent
	ErrNotFound = errors.New("not found")

	// ErrDegenerateVector means an interpolation or embedding collapsed to a
	// zero, NaN or infinite norm
	ErrDegenerateVector = errors.New("degenerate vector")

	// ErrStoreUnavailable wraps any other adapter failure. The core does not retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDeliveryFailed means the delivery channel rejected a digest
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrValidation means malformed input, e.g. an out-of-range day of week
	ErrValidation = errors.New("validation error")
)

// Context keys for error values
const (
	UserIDKey    = "user_id"
	ArticleIDKey = "article_id"
)

// storeError classifies an adapter error. The adapter error stays in the chain
// so both the use case sentinel and the original cause match errors.Is.
func storeError(err error, msg string, opts ...goerr.Option) error {
	kind := ErrStoreUnavailable
	if errors.Is(err, interfaces.ErrNotFound) {
		kind = ErrNotFound
	}
	return goerr.Wrap(errors.Join(kind, err), msg, opts...)
}
