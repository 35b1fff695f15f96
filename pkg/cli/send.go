package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// ErrCycleFailures is returned by send when any user ended FAILED or
// DELIVERY_FAILED, so the process exits non-zero
var ErrCycleFailures = goerr.New("digest cycle had failures")

func cmdSend() *cli.Command {
	var af appFlags
	var at string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "at",
			Usage:       "Run the cycle as if it were this RFC3339 time (defaults to now)",
			Destination: &at,
		},
	}
	flags = append(flags, af.Flags()...)

	return &cli.Command{
		Name:  "send",
		Usage: "Run one digest cycle now and print a summary",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return goerr.Wrap(err, "invalid --at time", goerr.V("at", at))
				}
				now = t
			}

			e, err := af.build(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			results, cycleErr := e.uc.Digest.RunCycle(ctx, now.In(e.uc.Schedule().Location))
			failures := printSummary(os.Stdout, results)

			if cycleErr != nil {
				return goerr.Wrap(cycleErr, "digest cycle did not complete")
			}
			if failures > 0 {
				return goerr.Wrap(ErrCycleFailures, "some users were not served", goerr.V("failures", failures))
			}
			return nil
		},
	}
}

// printSummary writes one line per user and a total, and returns the number
// of failed users
func printSummary(w io.Writer, results []*model.DigestResult) int {
	statusColor := map[types.DigestStatus]*color.Color{
		types.DigestStatusSent:           color.New(color.FgGreen),
		types.DigestStatusNoCandidates:   color.New(color.FgYellow),
		types.DigestStatusDeliveryFailed: color.New(color.FgRed),
		types.DigestStatusFailed:         color.New(color.FgRed, color.Bold),
	}

	counts := make(map[types.DigestStatus]int)
	failures := 0
	for _, r := range results {
		counts[r.Status]++
		if r.Status.IsFailure() {
			failures++
		}

		status := r.Status.String()
		if c, ok := statusColor[r.Status]; ok {
			status = c.Sprint(status)
		}
		line := fmt.Sprintf("%-16s %s", r.UserID, status)
		if len(r.ArticleIDs) > 0 {
			line += fmt.Sprintf(" (%d articles)", len(r.ArticleIDs))
		}
		if r.Error != nil {
			line += " " + color.New(color.Faint).Sprint(r.Error.Error())
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\n%d users: %d sent, %d without candidates, %d delivery failed, %d failed\n",
		len(results),
		counts[types.DigestStatusSent],
		counts[types.DigestStatusNoCandidates],
		counts[types.DigestStatusDeliveryFailed],
		counts[types.DigestStatusFailed])

	return failures
}
