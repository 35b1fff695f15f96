package firestore

import (
	"context"
	"iter"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	profilesCollection = "profiles"
	sentCollection     = "sent"
)

// profileDoc is the Firestore persistence model
type profileDoc struct {
	UserID      string    `firestore:"user_id"`
	Email       string    `firestore:"email"`
	Frequency   string    `firestore:"frequency"`
	DayOfWeek   int       `firestore:"day_of_week"`
	Interests   string    `firestore:"interests"`
	LastUpdated time.Time `firestore:"last_updated"`
	SentCount   int       `firestore:"sent_count"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// sentDoc records one article delivered to a user, keyed by article ID
type sentDoc struct {
	ArticleID string    `firestore:"article_id"`
	SentAt    time.Time `firestore:"sent_at"`
}

func toProfileDoc(p *model.Profile) *profileDoc {
	return &profileDoc{
		UserID:      p.UserID,
		Email:       p.Email,
		Frequency:   p.Frequency.String(),
		DayOfWeek:   int(p.DayOfWeek),
		Interests:   p.Interests,
		LastUpdated: p.LastUpdated,
		SentCount:   p.SentCount,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProfileDoc(d *profileDoc) *model.Profile {
	return &model.Profile{
		UserID:      d.UserID,
		Email:       d.Email,
		Frequency:   types.Frequency(d.Frequency),
		DayOfWeek:   time.Weekday(d.DayOfWeek),
		Interests:   d.Interests,
		LastUpdated: d.LastUpdated,
		SentCount:   d.SentCount,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type profileRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newProfileRepository(client *firestore.Client) *profileRepository {
	return &profileRepository{client: client}
}

func (r *profileRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.collectionPrefix, profilesCollection))
}

// sentCollection returns the subcollection path: profiles/{userID}/sent
func (r *profileRepository) sentCollection(userID string) *firestore.CollectionRef {
	return r.collection().Doc(userID).Collection(sentCollection)
}

func (r *profileRepository) Get(ctx context.Context, userID string) (*model.Profile, error) {
	doc, err := r.collection().Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "profile not found", goerr.V("userID", userID))
		}
		return nil, goerr.Wrap(err, "failed to get profile", goerr.V("userID", userID))
	}

	var d profileDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal profile", goerr.V("userID", userID))
	}

	return fromProfileDoc(&d), nil
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	if profile.UserID == "" {
		return nil, goerr.New("user ID is required")
	}

	created := profile.Copy()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.collection().Doc(created.UserID).Create(ctx, toProfileDoc(created)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.New("profile already exists", goerr.V("userID", created.UserID))
		}
		return nil, goerr.Wrap(err, "failed to create profile", goerr.V("userID", created.UserID))
	}

	return created, nil
}

func (r *profileRepository) Update(ctx context.Context, userID string, update *model.ProfileUpdate) (*model.Profile, error) {
	docRef := r.collection().Doc(userID)

	var updated *model.Profile
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "profile not found", goerr.V("userID", userID))
			}
			return goerr.Wrap(err, "failed to get profile", goerr.V("userID", userID))
		}

		var d profileDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal profile", goerr.V("userID", userID))
		}

		p := fromProfileDoc(&d)
		update.Apply(p)
		p.UpdatedAt = time.Now().UTC()

		if err := tx.Set(docRef, toProfileDoc(p)); err != nil {
			return goerr.Wrap(err, "failed to save profile", goerr.V("userID", userID))
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *profileRepository) List(ctx context.Context) iter.Seq2[*model.Profile, error] {
	return func(yield func(*model.Profile, error) bool) {
		docs := r.collection().Documents(ctx)
		defer docs.Stop()

		for {
			doc, err := docs.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				yield(nil, goerr.Wrap(err, "failed to iterate profiles"))
				return
			}

			var d profileDoc
			if err := doc.DataTo(&d); err != nil {
				if !yield(nil, goerr.Wrap(err, "failed to unmarshal profile", goerr.V("docID", doc.Ref.ID))) {
					return
				}
				continue
			}

			if !yield(fromProfileDoc(&d), nil) {
				return
			}
		}
	}
}

func (r *profileRepository) AppendSentHistory(ctx context.Context, userID string, articleIDs []string) error {
	if _, err := r.collection().Doc(userID).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "profile not found", goerr.V("userID", userID))
		}
		return goerr.Wrap(err, "failed to get profile", goerr.V("userID", userID))
	}
	if len(articleIDs) == 0 {
		return nil
	}

	// Use BulkWriter which automatically handles batching
	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	now := time.Now().UTC()
	jobs := make([]*firestore.BulkWriterJob, 0, len(articleIDs))
	for _, id := range articleIDs {
		docRef := r.sentCollection(userID).Doc(id)
		job, err := bulkWriter.Set(docRef, &sentDoc{ArticleID: id, SentAt: now})
		if err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("userID", userID), goerr.V("articleID", id))
		}
		jobs = append(jobs, job)
	}

	bulkWriter.Flush()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to record sent article", goerr.V("userID", userID), goerr.V("articleID", articleIDs[i]))
		}
	}

	return nil
}

func (r *profileRepository) SentHistory(ctx context.Context, userID string) (model.ArticleSet, error) {
	docs := r.sentCollection(userID).Documents(ctx)
	defer docs.Stop()

	set := model.NewArticleSet()
	for {
		doc, err := docs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sent history", goerr.V("userID", userID))
		}
		set.Add(doc.Ref.ID)
	}

	return set, nil
}
