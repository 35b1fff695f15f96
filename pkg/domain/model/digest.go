package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
)

// DigestID is a UUID-based identifier for Digest
type DigestID string

// NewDigestID generates a new UUID v4 DigestID
func NewDigestID() DigestID {
	return DigestID(uuid.New().String())
}

// CycleID identifies one run of the digest cycle in logs
type CycleID string

// NewCycleID generates a new UUID v4 CycleID
func NewCycleID() CycleID {
	return CycleID(uuid.New().String())
}

// Digest is one batch of selected articles for one user in one cycle
type Digest struct {
	ID        DigestID
	UserID    string
	Email     string
	Articles  []*Article
	CreatedAt time.Time
}

// ArticleIDs returns the IDs of the digest's articles in order
func (d *Digest) ArticleIDs() []string {
	ids := make([]string, len(d.Articles))
	for i, a := range d.Articles {
		ids[i] = a.ID
	}
	return ids
}

// DigestResult is the per-user outcome of a digest cycle
type DigestResult struct {
	UserID     string
	DigestID   DigestID // Empty unless a digest was built
	ArticleIDs []string
	Status     types.DigestStatus
	Error      error
}
