package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	_ "modernc.org/sqlite"
)

// ErrNotFound is the backend-independent not found error
var ErrNotFound = interfaces.ErrNotFound

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	namespace TEXT NOT NULL,
	id TEXT NOT NULL,
	vals TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (namespace, id)
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	frequency TEXT NOT NULL,
	day_of_week INTEGER NOT NULL DEFAULT 0,
	interests TEXT NOT NULL DEFAULT '',
	last_updated INTEGER NOT NULL DEFAULT 0,
	sent_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sent_history (
	user_id TEXT NOT NULL REFERENCES profiles(user_id),
	article_id TEXT NOT NULL,
	sent_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, article_id)
);
`

// SQLite stores vectors, profiles and sent history in a single database file.
// Similarity queries scan the namespace, which is fine for single-node
// deployments with a few thousand articles.
type SQLite struct {
	db      *sql.DB
	vector  *vectorRepository
	profile *profileRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (and creates when missing) the database at path. Use ":memory:"
// for a throwaway database.
func New(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	// A single connection serializes writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("path", path))
	}

	return &SQLite{
		db:      db,
		vector:  &vectorRepository{db: db},
		profile: &profileRepository{db: db},
	}, nil
}

func (s *SQLite) Vector() interfaces.VectorRepository {
	return s.vector
}

func (s *SQLite) Profile() interfaces.ProfileRepository {
	return s.profile
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
