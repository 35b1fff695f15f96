package archive

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/utils/safe"
)

// ObjectStore opens writers for named objects
type ObjectStore interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

// DefaultPrefix is the object name prefix of archived digests
const DefaultPrefix = "digests"

// Archiver stores every delivered digest as a JSON object, one per digest
type Archiver struct {
	store  ObjectStore
	prefix string
}

var _ interfaces.Archiver = &Archiver{}

type Option func(*Archiver)

// WithPrefix sets the object name prefix. Default is DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		a.prefix = prefix
	}
}

func New(store ObjectStore, opts ...Option) *Archiver {
	a := &Archiver{
		store:  store,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type archivedArticle struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Summary string  `json:"summary,omitempty"`
	Score   float64 `json:"score"`
}

type archivedDigest struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
	Articles  []archivedArticle `json:"articles"`
}

// ObjectName returns where a digest is stored:
// {prefix}/{yyyy}/{mm}/{dd}/{user}/{digest}.json
func (a *Archiver) ObjectName(digest *model.Digest) string {
	created := digest.CreatedAt.UTC()
	return path.Join(a.prefix, created.Format("2006/01/02"), digest.UserID, string(digest.ID)+".json")
}

// Archive writes the digest. Recipient emails and click tokens are left out.
func (a *Archiver) Archive(ctx context.Context, digest *model.Digest) error {
	doc := archivedDigest{
		ID:        string(digest.ID),
		UserID:    digest.UserID,
		CreatedAt: digest.CreatedAt,
		Articles:  make([]archivedArticle, len(digest.Articles)),
	}
	for i, art := range digest.Articles {
		doc.Articles[i] = archivedArticle{
			ID:      art.ID,
			Title:   art.Title,
			URL:     art.URL,
			Summary: art.Summary,
			Score:   art.Score,
		}
	}

	name := a.ObjectName(digest)
	w := a.store.NewWriter(ctx, name)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to write archived digest", goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize archived digest", goerr.V("object", name))
	}

	return nil
}

// GCS is an ObjectStore backed by a Cloud Storage bucket
type GCS struct {
	client *storage.Client
	bucket string
}

var _ ObjectStore = &GCS{}

// NewGCS creates a Cloud Storage object store using application default credentials
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, goerr.New("archive bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client", goerr.V("bucket", bucket))
	}

	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) NewWriter(ctx context.Context, object string) io.WriteCloser {
	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}

func (g *GCS) Close() error {
	return g.client.Close()
}
