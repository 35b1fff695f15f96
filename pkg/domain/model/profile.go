package model

import (
	"time"

	"github.com/secmon-lab/hackernyous/pkg/domain/types"
)

// DefaultSentCount is the number of articles per digest for new profiles
const DefaultSentCount = 10

// Profile is the relational part of a subscriber: delivery address, cadence
// and the time of the last digest considered sent.
type Profile struct {
	UserID      string
	Email       string
	Frequency   types.Frequency
	DayOfWeek   time.Weekday // Only meaningful for weekly frequency
	Interests   string       // Raw interests text the vector was last seeded from
	LastUpdated time.Time    // Zero means no digest was sent yet
	SentCount   int          // Soft cap on articles per digest
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Copy returns a copy of the profile
func (p *Profile) Copy() *Profile {
	copied := *p
	return &copied
}

// ProfileUpdate carries a partial profile update. Nil fields are left untouched.
type ProfileUpdate struct {
	Email       *string
	Frequency   *types.Frequency
	DayOfWeek   *time.Weekday
	Interests   *string
	LastUpdated *time.Time
	SentCount   *int
}

// Apply writes the non-nil fields of u into p
func (u *ProfileUpdate) Apply(p *Profile) {
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.Frequency != nil {
		p.Frequency = *u.Frequency
	}
	if u.DayOfWeek != nil {
		p.DayOfWeek = *u.DayOfWeek
	}
	if u.Interests != nil {
		p.Interests = *u.Interests
	}
	if u.LastUpdated != nil {
		p.LastUpdated = *u.LastUpdated
	}
	if u.SentCount != nil {
		p.SentCount = *u.SentCount
	}
}

// User is a due subscriber together with its current preference vector
type User struct {
	Profile *Profile
	Values  []float32
}
