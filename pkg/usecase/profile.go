package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
)

// ProfileUseCase creates and updates subscriber profiles together with the
// preference vector seeded from their interests
type ProfileUseCase struct {
	repo             interfaces.Repository
	embedder         interfaces.Embedder
	schedule         Schedule
	locks            *UserLocker
	defaultSentCount int
	now              func() time.Time
}

// SaveProfileInput represents input for saving a profile
type SaveProfileInput struct {
	UserID    string
	Email     string
	Interests string
	Frequency types.Frequency
	DayOfWeek time.Weekday
}

// Validate checks the input. Failures wrap ErrValidation.
func (in *SaveProfileInput) Validate() error {
	if in.UserID == "" {
		return goerr.Wrap(ErrValidation, "user ID is required")
	}
	// Delivery addresses the stored string directly, so display names and
	// surrounding whitespace are rejected
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return goerr.Wrap(ErrValidation, "invalid email address", goerr.V("email", in.Email))
	}
	if strings.TrimSpace(in.Interests) == "" {
		return goerr.Wrap(ErrValidation, "interests are required", goerr.V(UserIDKey, in.UserID))
	}
	if !in.Frequency.IsValid() {
		return goerr.Wrap(ErrValidation, "invalid frequency", goerr.V("frequency", in.Frequency))
	}
	if in.DayOfWeek < time.Sunday || in.DayOfWeek > time.Saturday {
		return goerr.Wrap(ErrValidation, "day of week out of range", goerr.V("day_of_week", int(in.DayOfWeek)))
	}
	return nil
}

// Save creates or updates the profile and keeps the user vector in sync with
// the interests text. Unchanged interests are not re-embedded. A new profile,
// or one whose frequency or weekday changed, starts at the current send
// threshold so its next digest goes out at the next send time of the new
// cadence.
func (uc *ProfileUseCase) Save(ctx context.Context, in SaveProfileInput) (*model.Profile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	unlock := uc.locks.Lock(in.UserID)
	defer unlock()

	existing, err := uc.repo.Profile().Get(ctx, in.UserID)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, storeError(err, "failed to get profile", goerr.V(UserIDKey, in.UserID))
	}

	vector, err := uc.repo.Vector().Fetch(ctx, model.NamespaceUsers, in.UserID)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, storeError(err, "failed to fetch user vector", goerr.V(UserIDKey, in.UserID))
	}

	if vector == nil || existing == nil || existing.Interests != in.Interests {
		if err := uc.seedVector(ctx, in, vector != nil); err != nil {
			return nil, err
		}
	}

	threshold, err := uc.schedule.ComputeSendThreshold(in.Frequency, in.DayOfWeek, uc.now())
	if err != nil {
		return nil, err
	}

	if existing == nil {
		created, err := uc.repo.Profile().Create(ctx, &model.Profile{
			UserID:      in.UserID,
			Email:       in.Email,
			Frequency:   in.Frequency,
			DayOfWeek:   in.DayOfWeek,
			Interests:   in.Interests,
			LastUpdated: threshold,
			SentCount:   uc.defaultSentCount,
		})
		if err != nil {
			return nil, storeError(err, "failed to create profile", goerr.V(UserIDKey, in.UserID))
		}

		logging.From(ctx).Info("profile created", "user_id", in.UserID, "frequency", in.Frequency)
		return created, nil
	}

	update := &model.ProfileUpdate{
		Email:     &in.Email,
		Frequency: &in.Frequency,
		DayOfWeek: &in.DayOfWeek,
		Interests: &in.Interests,
	}
	if existing.Frequency != in.Frequency || existing.DayOfWeek != in.DayOfWeek {
		update.LastUpdated = &threshold
	}

	updated, err := uc.repo.Profile().Update(ctx, in.UserID, update)
	if err != nil {
		return nil, storeError(err, "failed to update profile", goerr.V(UserIDKey, in.UserID))
	}

	logging.From(ctx).Info("profile updated", "user_id", in.UserID, "frequency", in.Frequency)
	return updated, nil
}

func (uc *ProfileUseCase) seedVector(ctx context.Context, in SaveProfileInput, exists bool) error {
	if uc.embedder == nil {
		return goerr.New("embedder is not configured", goerr.V(UserIDKey, in.UserID))
	}

	embedding, err := uc.embedder.Embed(ctx, in.Interests)
	if err != nil {
		return goerr.Wrap(err, "failed to embed interests", goerr.V(UserIDKey, in.UserID))
	}

	values, ok := model.Normalize(embedding)
	if !ok {
		return goerr.Wrap(ErrDegenerateVector, "interests embedding cannot be normalized", goerr.V(UserIDKey, in.UserID))
	}

	metadata := map[string]any{model.UserMetaDescription: in.Interests}
	if exists {
		if err := uc.repo.Vector().Update(ctx, model.NamespaceUsers, in.UserID, values, metadata); err != nil {
			return storeError(err, "failed to update user vector", goerr.V(UserIDKey, in.UserID))
		}
		return nil
	}

	if err := uc.repo.Vector().Upsert(ctx, &model.Vector{
		ID:        in.UserID,
		Namespace: model.NamespaceUsers,
		Values:    values,
		Metadata:  metadata,
	}); err != nil {
		return storeError(err, "failed to save user vector", goerr.V(UserIDKey, in.UserID))
	}
	return nil
}

// Get returns the profile of userID. Absent profiles are ErrNotFound.
func (uc *ProfileUseCase) Get(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := uc.repo.Profile().Get(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to get profile", goerr.V(UserIDKey, userID))
	}
	return profile, nil
}
