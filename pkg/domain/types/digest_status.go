package types

import "fmt"

// DigestStatus represents the outcome of one user's step in a digest cycle
type DigestStatus string

const (
	// DigestStatusSent means the digest was delivered and state was advanced
	DigestStatusSent DigestStatus = "SENT"
	// DigestStatusNoCandidates means no unsent article was available; state is unchanged
	DigestStatusNoCandidates DigestStatus = "NO_CANDIDATES"
	// DigestStatusDeliveryFailed means the channel rejected the digest; state is unchanged
	DigestStatusDeliveryFailed DigestStatus = "DELIVERY_FAILED"
	// DigestStatusFailed covers every other per-user failure (store errors, missing vector)
	DigestStatusFailed DigestStatus = "FAILED"
)

// AllDigestStatuses returns all valid digest statuses
func AllDigestStatuses() []DigestStatus {
	return []DigestStatus{
		DigestStatusSent,
		DigestStatusNoCandidates,
		DigestStatusDeliveryFailed,
		DigestStatusFailed,
	}
}

// IsValid checks if the digest status is valid
func (s DigestStatus) IsValid() bool {
	switch s {
	case DigestStatusSent,
		DigestStatusNoCandidates,
		DigestStatusDeliveryFailed,
		DigestStatusFailed:
		return true
	default:
		return false
	}
}

// IsFailure reports whether the status should be treated as an error by callers
func (s DigestStatus) IsFailure() bool {
	return s == DigestStatusDeliveryFailed || s == DigestStatusFailed
}

// String returns the string representation of the digest status
func (s DigestStatus) String() string {
	return string(s)
}

// ParseDigestStatus parses a string into a DigestStatus
func ParseDigestStatus(s string) (DigestStatus, error) {
	status := DigestStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid digest status: %s", s)
	}
	return status, nil
}
