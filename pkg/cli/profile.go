package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdProfile() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage subscriber profiles",
		Commands: []*cli.Command{
			cmdProfileSet(),
			cmdProfileGet(),
		},
	}
}

func cmdProfileSet() *cli.Command {
	var af appFlags
	var in usecase.SaveProfileInput
	var frequency string
	var dayOfWeek int

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "Subscriber ID",
			Required:    true,
			Destination: &in.UserID,
		},
		&cli.StringFlag{
			Name:        "email",
			Usage:       "Delivery address",
			Required:    true,
			Destination: &in.Email,
		},
		&cli.StringFlag{
			Name:        "interests",
			Usage:       "Free text describing what the subscriber wants to read",
			Required:    true,
			Destination: &in.Interests,
		},
		&cli.StringFlag{
			Name:        "frequency",
			Usage:       "daily or weekly",
			Value:       types.FrequencyDaily.String(),
			Destination: &frequency,
		},
		&cli.IntFlag{
			Name:        "day-of-week",
			Usage:       "Weekly send day, 0=Sunday .. 6=Saturday",
			Destination: &dayOfWeek,
		},
	}
	flags = append(flags, af.Flags()...)

	return &cli.Command{
		Name:  "set",
		Usage: "Create or update a profile and seed its preference vector",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := af.build(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			in.Frequency = types.Frequency(frequency)
			in.DayOfWeek = time.Weekday(dayOfWeek)

			profile, err := e.uc.Profile.Save(ctx, in)
			if err != nil {
				return goerr.Wrap(err, "failed to save profile")
			}
			printProfile(profile)
			return nil
		},
	}
}

func cmdProfileGet() *cli.Command {
	var af appFlags
	var userID string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "Subscriber ID",
			Required:    true,
			Destination: &userID,
		},
	}
	flags = append(flags, af.Flags()...)

	return &cli.Command{
		Name:  "get",
		Usage: "Show a profile",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := af.build(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			profile, err := e.uc.Profile.Get(ctx, userID)
			if err != nil {
				return goerr.Wrap(err, "failed to get profile")
			}
			printProfile(profile)
			return nil
		},
	}
}

func printProfile(p *model.Profile) {
	lastUpdated := "never"
	if !p.LastUpdated.IsZero() {
		lastUpdated = p.LastUpdated.Format(time.RFC3339)
	}
	fmt.Fprintf(os.Stdout, "user:         %s\nemail:        %s\nfrequency:    %s\n",
		p.UserID, p.Email, p.Frequency)
	if p.Frequency == types.FrequencyWeekly {
		fmt.Fprintf(os.Stdout, "day of week:  %s\n", p.DayOfWeek)
	}
	fmt.Fprintf(os.Stdout, "sent count:   %d\nlast updated: %s\ninterests:    %s\n",
		p.SentCount, lastUpdated, p.Interests)
}
