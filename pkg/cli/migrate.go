package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/repository/firestore"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
	"github.com/secmon-lab/hackernyous/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var (
		projectID  string
		databaseID string
		prefix     string
		dryRun     bool
	)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the Firestore vector indexes for users and items",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("HACKERNYOUS_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("HACKERNYOUS_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Prefix for Firestore collection names",
				Sources:     cli.EnvVars("HACKERNYOUS_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &prefix,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Show the migration plan without applying it",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runMigrate(ctx, os.Stdout, projectID, databaseID, getIndexConfig(prefix), dryRun)
		},
	}
}

func runMigrate(ctx context.Context, w io.Writer, projectID, databaseID string, indexConfig *fireconf.Config, dryRun bool) error {
	logger := logging.Default().With("project_id", projectID, "database_id", databaseID)

	client, err := fireconf.NewClient(ctx, projectID, databaseID)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client", goerr.V("project_id", projectID))
	}
	defer safe.Close(ctx, client)

	if dryRun {
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}
		if len(plan.Steps) == 0 {
			fmt.Fprintln(w, color.New(color.FgGreen).Sprint("indexes are up to date"))
			return nil
		}
		for _, step := range plan.Steps {
			op := color.New(color.FgCyan).Sprint(step.Operation)
			if step.Destructive {
				op = color.New(color.FgRed, color.Bold).Sprint(step.Operation)
			}
			fmt.Fprintf(w, "%-24s %s %s\n", step.Collection, op, step.Description)
		}
		fmt.Fprintf(w, "\n%d steps planned, nothing applied\n", len(plan.Steps))
		return nil
	}

	logger.Info("applying index migration", "collections", len(indexConfig.Collections))
	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("index migration applied")
	return nil
}

// getIndexConfig returns the vector indexes QueryNearest needs. Profiles get
// no composite index because the cycle scans them in full.
func getIndexConfig(prefix string) *fireconf.Config {
	namespaces := []model.Namespace{model.NamespaceUsers, model.NamespaceItems}
	collections := make([]fireconf.Collection, 0, len(namespaces))
	for _, ns := range namespaces {
		collections = append(collections, fireconf.Collection{
			Name: firestore.CollectionName(prefix, ns.String()),
			Indexes: []fireconf.Index{{
				Fields: []fireconf.IndexField{{
					Path:   "Values",
					Vector: &fireconf.VectorConfig{Dimension: model.EmbeddingDimension},
				}},
			}},
		})
	}
	return &fireconf.Config{Collections: collections}
}
