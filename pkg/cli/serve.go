package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/hackernyous/pkg/controller/http"
	"github.com/secmon-lab/hackernyous/pkg/service/worker"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var disableWorker bool
	var af appFlags

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("HACKERNYOUS_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "no-worker",
			Usage:       "Serve HTTP only, without the scheduled digest cycle",
			Sources:     cli.EnvVars("HACKERNYOUS_NO_WORKER"),
			Destination: &disableWorker,
		},
	}
	flags = append(flags, af.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server and the scheduled digest cycle",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := af.build(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			httpOpts := []httpctrl.Options{
				httpctrl.WithHomeURL(e.cfg.Link.HomeURL),
				httpctrl.WithProfileAPI(e.uc.Profile, af.secrets.APIToken()),
			}
			if e.uc.Link != nil {
				httpOpts = append(httpOpts, httpctrl.WithClickTracking(e.uc.Link, e.uc.Preference))
			}
			if af.secrets.APIToken() == "" {
				logging.Default().Warn("API token not configured, profile API is unauthenticated")
			}

			var digestWorker *worker.DigestWorker
			if !disableWorker {
				digestWorker, err = worker.NewDigestWorker(e.uc.Digest, e.cfg.Schedule.Cycle, e.uc.Schedule().Location)
				if err != nil {
					return goerr.Wrap(err, "failed to create digest worker")
				}
				if err := digestWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start digest worker")
				}
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "worker", !disableWorker)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				if digestWorker != nil {
					digestWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop scheduling first; a running cycle finishes before Stop returns
				if digestWorker != nil {
					digestWorker.Stop()
				}

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
