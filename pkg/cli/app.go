package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/cli/config"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
	"github.com/secmon-lab/hackernyous/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// appFlags bundles the configuration every engine command shares
type appFlags struct {
	app      config.App
	repo     config.Repository
	gemini   config.Gemini
	delivery config.Delivery
	archive  config.Archive
	secrets  config.Secrets
}

func (x *appFlags) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.app.Flags()...)
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.gemini.Flags()...)
	flags = append(flags, x.delivery.Flags()...)
	flags = append(flags, x.archive.Flags()...)
	flags = append(flags, x.secrets.Flags()...)
	return flags
}

// engine is a fully wired set of use cases together with what must be
// released when the command ends
type engine struct {
	cfg     *config.AppConfig
	repo    interfaces.Repository
	uc      *usecase.UseCases
	closers []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func (x *appFlags) build(ctx context.Context) (*engine, error) {
	cfg, err := x.app.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load app configuration")
	}

	schedule, err := cfg.UseCaseSchedule()
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	e.repo = repo
	e.closers = append(e.closers, func() { safe.Close(ctx, repo) })

	delivery, err := x.delivery.Configure()
	if err != nil {
		e.Close()
		return nil, goerr.Wrap(err, "failed to configure delivery")
	}

	opts := []usecase.Option{
		usecase.WithAlpha(cfg.Feedback.Alpha),
		usecase.WithSchedule(schedule),
		usecase.WithDelivery(delivery),
		usecase.WithCandidatePool(cfg.Selection.CandidatePool),
		usecase.WithDefaultSentCount(cfg.Selection.DefaultSentCount),
		usecase.WithConcurrency(cfg.Selection.Concurrency),
	}

	embedder, err := x.gemini.Configure(ctx)
	if err != nil {
		e.Close()
		return nil, goerr.Wrap(err, "failed to configure embedder")
	}
	if embedder != nil {
		opts = append(opts, usecase.WithEmbedder(embedder))
	} else {
		logging.Default().Warn("Gemini project not configured, profile saving is disabled")
	}

	archiver, closeArchive, err := x.archive.Configure(ctx)
	if err != nil {
		e.Close()
		return nil, goerr.Wrap(err, "failed to configure archive")
	}
	if archiver != nil {
		opts = append(opts, usecase.WithArchiver(archiver))
		e.closers = append(e.closers, closeArchive)
	}

	if links := x.secrets.LinkUseCase(cfg); links != nil {
		opts = append(opts, usecase.WithLinks(links))
	} else {
		logging.Default().Info("Click tracking disabled, digests link straight to articles")
	}

	e.uc = usecase.New(repo, opts...)

	logging.Default().Info("Engine configured",
		"app", cfg,
		"delivery", x.delivery,
		"gemini", x.gemini,
		"secrets", x.secrets)

	return e, nil
}
