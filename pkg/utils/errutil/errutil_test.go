package errutil_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/utils/errutil"
)

func TestHandle(t *testing.T) {
	gt.Value(t, errutil.Handle(context.Background(), nil, "nothing")).Nil()

	cause := errors.New("boom")
	err := errutil.Handle(context.Background(), goerr.Wrap(cause, "wrapped", goerr.V("key", "value")), "failed")
	gt.Error(t, err).Is(cause)
}

func TestHandleHTTP(t *testing.T) {
	t.Run("client errors show the message", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, goerr.New("bad day of week"), http.StatusBadRequest)

		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.String(t, w.Body.String()).Contains("bad day of week")
	})

	t.Run("server errors hide details", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, goerr.New("firestore: connection refused"), http.StatusInternalServerError)

		gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
		gt.Bool(t, len(w.Body.String()) > 0).True()
		gt.Value(t, w.Body.String()).Equal("Internal Server Error\n")
	})
}
