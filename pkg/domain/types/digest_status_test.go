package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
)

func TestDigestStatus_IsValid(t *testing.T) {
	for _, s := range types.AllDigestStatuses() {
		t.Run(s.String(), func(t *testing.T) {
			gt.B(t, s.IsValid()).True()
		})
	}

	gt.B(t, types.DigestStatus("PENDING").IsValid()).False()
	gt.B(t, types.DigestStatus("").IsValid()).False()
}

func TestDigestStatus_IsFailure(t *testing.T) {
	tests := []struct {
		status types.DigestStatus
		want   bool
	}{
		{status: types.DigestStatusSent, want: false},
		{status: types.DigestStatusNoCandidates, want: false},
		{status: types.DigestStatusDeliveryFailed, want: true},
		{status: types.DigestStatusFailed, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			gt.Value(t, tt.status.IsFailure()).Equal(tt.want)
		})
	}
}

func TestParseDigestStatus(t *testing.T) {
	s, err := types.ParseDigestStatus("NO_CANDIDATES")
	gt.NoError(t, err)
	gt.Value(t, s).Equal(types.DigestStatusNoCandidates)

	_, err = types.ParseDigestStatus("sent")
	gt.Error(t, err)
}
