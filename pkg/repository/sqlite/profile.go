package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
)

const profileColumns = `user_id, email, frequency, day_of_week, interests, last_updated, sent_count, created_at, updated_at`

type profileRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var (
		p                                 model.Profile
		frequency                         string
		dayOfWeek                         int
		lastUpdated, createdAt, updatedAt int64
	)
	if err := row.Scan(
		&p.UserID,
		&p.Email,
		&frequency,
		&dayOfWeek,
		&p.Interests,
		&lastUpdated,
		&p.SentCount,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	p.Frequency = types.Frequency(frequency)
	p.DayOfWeek = time.Weekday(dayOfWeek)
	p.LastUpdated = fromUnix(lastUpdated)
	p.CreatedAt = fromUnix(createdAt)
	p.UpdatedAt = fromUnix(updatedAt)
	return &p, nil
}

func (r *profileRepository) Get(ctx context.Context, userID string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "profile not found", goerr.V("userID", userID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get profile", goerr.V("userID", userID))
	}
	return p, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	if profile.UserID == "" {
		return nil, goerr.New("user ID is required")
	}

	created := profile.Copy()
	now := time.Now().UTC().Truncate(time.Second)
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.UserID,
		created.Email,
		created.Frequency.String(),
		int(created.DayOfWeek),
		created.Interests,
		toUnix(created.LastUpdated),
		created.SentCount,
		toUnix(created.CreatedAt),
		toUnix(created.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, goerr.New("profile already exists", goerr.V("userID", created.UserID))
		}
		return nil, goerr.Wrap(err, "failed to create profile", goerr.V("userID", created.UserID))
	}

	return created, nil
}

func (r *profileRepository) Update(ctx context.Context, userID string, update *model.ProfileUpdate) (*model.Profile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProfile(tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "profile not found", goerr.V("userID", userID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get profile", goerr.V("userID", userID))
	}

	update.Apply(p)
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	if _, err := tx.ExecContext(ctx, `
		UPDATE profiles SET
			email = ?, frequency = ?, day_of_week = ?, interests = ?,
			last_updated = ?, sent_count = ?, updated_at = ?
		WHERE user_id = ?`,
		p.Email,
		p.Frequency.String(),
		int(p.DayOfWeek),
		p.Interests,
		toUnix(p.LastUpdated),
		p.SentCount,
		toUnix(p.UpdatedAt),
		userID,
	); err != nil {
		return nil, goerr.Wrap(err, "failed to update profile", goerr.V("userID", userID))
	}

	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "failed to commit profile update", goerr.V("userID", userID))
	}

	return p, nil
}

func (r *profileRepository) List(ctx context.Context) iter.Seq2[*model.Profile, error] {
	return func(yield func(*model.Profile, error) bool) {
		// Rows are drained before yielding: the single connection must be free
		// for writes made by the consumer
		profiles, err := r.listAll(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, p := range profiles {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (r *profileRepository) listAll(ctx context.Context) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query profiles")
	}
	defer func() { _ = rows.Close() }()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan profile")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate profiles")
	}

	return profiles, nil
}

func (r *profileRepository) AppendSentHistory(ctx context.Context, userID string, articleIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE user_id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return goerr.Wrap(ErrNotFound, "profile not found", goerr.V("userID", userID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to get profile", goerr.V("userID", userID))
	}

	now := time.Now().UTC().Unix()
	for _, id := range articleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sent_history (user_id, article_id, sent_at) VALUES (?, ?, ?)
			ON CONFLICT(user_id, article_id) DO NOTHING`,
			userID, id, now,
		); err != nil {
			return goerr.Wrap(err, "failed to record sent article", goerr.V("userID", userID), goerr.V("articleID", id))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit sent history", goerr.V("userID", userID))
	}
	return nil
}

func (r *profileRepository) SentHistory(ctx context.Context, userID string) (model.ArticleSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT article_id FROM sent_history WHERE user_id = ?`, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query sent history", goerr.V("userID", userID))
	}
	defer func() { _ = rows.Close() }()

	set := model.NewArticleSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, goerr.Wrap(err, "failed to scan sent history row")
		}
		set.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate sent history", goerr.V("userID", userID))
	}

	return set, nil
}
