package usecase

import (
	"iter"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
)

// DefaultSendHour is the local hour at which digests become due
const DefaultSendHour = 8

// Schedule decides when users are due for a digest. All threshold math runs
// in Location so the result does not depend on the host time zone.
type Schedule struct {
	Location *time.Location
	SendHour int
}

// DefaultSchedule sends at 08:00 UTC
func DefaultSchedule() Schedule {
	return Schedule{
		Location: time.UTC,
		SendHour: DefaultSendHour,
	}
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// ComputeSendThreshold returns the most recent send time at or before now for
// the given cadence. A user whose last digest is older than the threshold is due.
func (s Schedule) ComputeSendThreshold(freq types.Frequency, day time.Weekday, now time.Time) (time.Time, error) {
	if s.SendHour < 0 || s.SendHour > 23 {
		return time.Time{}, goerr.Wrap(ErrValidation, "send hour out of range", goerr.V("send_hour", s.SendHour))
	}

	loc := s.location()
	local := now.In(loc)
	sendTime := time.Date(local.Year(), local.Month(), local.Day(), s.SendHour, 0, 0, 0, loc)

	switch freq {
	case types.FrequencyDaily:
		if local.Before(sendTime) {
			sendTime = sendTime.AddDate(0, 0, -1)
		}
		return sendTime, nil

	case types.FrequencyWeekly:
		if day < time.Sunday || day > time.Saturday {
			return time.Time{}, goerr.Wrap(ErrValidation, "day of week out of range", goerr.V("day_of_week", int(day)))
		}
		back := (int(local.Weekday()) - int(day) + 7) % 7
		sendTime = sendTime.AddDate(0, 0, -back)
		// Same weekday but before the send hour: last week's occurrence
		if sendTime.After(local) {
			sendTime = sendTime.AddDate(0, 0, -7)
		}
		return sendTime, nil

	default:
		return time.Time{}, goerr.Wrap(ErrValidation, "invalid frequency", goerr.V("frequency", freq))
	}
}

// IsDue reports whether the profile's last digest predates the current threshold.
// A profile that never received a digest is always due.
func (s Schedule) IsDue(profile *model.Profile, now time.Time) (bool, error) {
	threshold, err := s.ComputeSendThreshold(profile.Frequency, profile.DayOfWeek, now)
	if err != nil {
		return false, goerr.Wrap(err, "failed to compute send threshold", goerr.V(UserIDKey, profile.UserID))
	}

	if profile.LastUpdated.IsZero() {
		return true, nil
	}
	return profile.LastUpdated.Before(threshold), nil
}

// SelectDueUsers lazily filters profiles down to the due ones in a single pass.
// Source errors are passed through with a nil profile. Profiles with an invalid
// schedule are yielded together with an ErrValidation error.
func (s Schedule) SelectDueUsers(profiles iter.Seq2[*model.Profile, error], now time.Time) iter.Seq2[*model.Profile, error] {
	return func(yield func(*model.Profile, error) bool) {
		for profile, err := range profiles {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}

			due, err := s.IsDue(profile, now)
			if err != nil {
				if !yield(profile, err) {
					return
				}
				continue
			}

			if due && !yield(profile, nil) {
				return
			}
		}
	}
}
