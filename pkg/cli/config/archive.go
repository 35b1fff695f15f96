package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/service/archive"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
	"github.com/secmon-lab/hackernyous/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// Archive holds CLI flags for the GCS digest archive
type Archive struct {
	bucket string
	prefix string
}

func (x *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "GCS bucket for delivered digests (archive disabled when empty)",
			Category:    "Archive",
			Sources:     cli.EnvVars("HACKERNYOUS_ARCHIVE_BUCKET"),
			Destination: &x.bucket,
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object name prefix in the archive bucket",
			Category:    "Archive",
			Value:       archive.DefaultPrefix,
			Sources:     cli.EnvVars("HACKERNYOUS_ARCHIVE_PREFIX"),
			Destination: &x.prefix,
		},
	}
}

// Configure returns the archiver and a closer. Both are nil when no bucket is
// configured.
func (x *Archive) Configure(ctx context.Context) (interfaces.Archiver, func(), error) {
	if x.bucket == "" {
		return nil, nil, nil
	}

	store, err := archive.NewGCS(ctx, x.bucket)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize archive storage", goerr.V("bucket", x.bucket))
	}

	logging.Default().Info("Archiving digests to GCS", "bucket", x.bucket, "prefix", x.prefix)
	closer := func() { safe.Close(context.Background(), store) }
	return archive.New(store, archive.WithPrefix(x.prefix)), closer, nil
}
