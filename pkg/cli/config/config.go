package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/service/worker"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the tuning file of the digest engine
type AppConfig struct {
	Feedback  Feedback  `toml:"feedback"`
	Schedule  Schedule  `toml:"schedule"`
	Selection Selection `toml:"selection"`
	Link      Link      `toml:"link"`
}

// Feedback configures click feedback
type Feedback struct {
	Alpha float64 `toml:"alpha"`
}

// Schedule configures send times and the cycle cadence
type Schedule struct {
	Timezone string `toml:"timezone"`
	SendHour *int   `toml:"send_hour"`
	Cycle    string `toml:"cycle"`
}

// Selection configures candidate selection
type Selection struct {
	CandidatePool    int `toml:"candidate_pool"`
	DefaultSentCount int `toml:"default_sent_count"`
	Concurrency      int `toml:"concurrency"`
}

// Link configures click links in digests
type Link struct {
	BaseURL string `toml:"base_url"`
	HomeURL string `toml:"home_url"`
	TTL     string `toml:"ttl"`
}

// DefaultAppConfig returns the configuration used when no file is given
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

func (a *AppConfig) applyDefaults() {
	if a.Feedback.Alpha == 0 {
		a.Feedback.Alpha = usecase.DefaultAlpha
	}
	if a.Schedule.Timezone == "" {
		a.Schedule.Timezone = "UTC"
	}
	if a.Schedule.SendHour == nil {
		hour := usecase.DefaultSendHour
		a.Schedule.SendHour = &hour
	}
	if a.Schedule.Cycle == "" {
		a.Schedule.Cycle = worker.DefaultCycleSpec
	}
	if a.Selection.CandidatePool == 0 {
		a.Selection.CandidatePool = usecase.DefaultCandidatePool
	}
	if a.Selection.DefaultSentCount == 0 {
		a.Selection.DefaultSentCount = model.DefaultSentCount
	}
	if a.Selection.Concurrency == 0 {
		a.Selection.Concurrency = usecase.DefaultConcurrency
	}
	if a.Link.HomeURL == "" {
		a.Link.HomeURL = "https://news.ycombinator.com/"
	}
	if a.Link.TTL == "" {
		a.Link.TTL = usecase.DefaultLinkTTL.String()
	}
}

func invalid(field string, value any, msg string) error {
	return goerr.Wrap(ErrInvalidConfig, msg, goerr.V(FieldKey, field), goerr.V(ValueKey, value))
}

// Validate checks if the AppConfig is valid. Defaults must be applied first.
func (a *AppConfig) Validate() error {
	if a.Feedback.Alpha <= 0 || a.Feedback.Alpha >= 1 {
		return invalid("feedback.alpha", a.Feedback.Alpha, "alpha must be between 0 and 1 exclusive")
	}

	if _, err := time.LoadLocation(a.Schedule.Timezone); err != nil {
		return goerr.Wrap(errors.Join(ErrInvalidConfig, err), "unknown timezone", goerr.V(FieldKey, "schedule.timezone"), goerr.V(ValueKey, a.Schedule.Timezone))
	}
	if h := *a.Schedule.SendHour; h < 0 || h > 23 {
		return invalid("schedule.send_hour", h, "send hour must be between 0 and 23")
	}
	if _, err := cron.ParseStandard(a.Schedule.Cycle); err != nil {
		return goerr.Wrap(errors.Join(ErrInvalidConfig, err), "invalid cycle spec", goerr.V(FieldKey, "schedule.cycle"), goerr.V(ValueKey, a.Schedule.Cycle))
	}

	if a.Selection.CandidatePool < 0 {
		return invalid("selection.candidate_pool", a.Selection.CandidatePool, "candidate pool must be positive")
	}
	if a.Selection.DefaultSentCount < 0 {
		return invalid("selection.default_sent_count", a.Selection.DefaultSentCount, "default sent count must be positive")
	}
	if a.Selection.Concurrency < 0 {
		return invalid("selection.concurrency", a.Selection.Concurrency, "concurrency must be positive")
	}

	ttl, err := time.ParseDuration(a.Link.TTL)
	if err != nil {
		return goerr.Wrap(errors.Join(ErrInvalidConfig, err), "invalid link ttl", goerr.V(FieldKey, "link.ttl"), goerr.V(ValueKey, a.Link.TTL))
	}
	if ttl <= 0 {
		return invalid("link.ttl", a.Link.TTL, "link ttl must be positive")
	}

	return nil
}

// LoadAppConfiguration loads the application configuration from a TOML file,
// fills in defaults and validates it
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// UseCaseSchedule returns the due-user schedule
func (a *AppConfig) UseCaseSchedule() (usecase.Schedule, error) {
	loc, err := time.LoadLocation(a.Schedule.Timezone)
	if err != nil {
		return usecase.Schedule{}, goerr.Wrap(err, "failed to load timezone", goerr.V(ValueKey, a.Schedule.Timezone))
	}
	return usecase.Schedule{Location: loc, SendHour: *a.Schedule.SendHour}, nil
}

// LinkTTL returns the lifetime of click links
func (a *AppConfig) LinkTTL() time.Duration {
	ttl, err := time.ParseDuration(a.Link.TTL)
	if err != nil {
		return usecase.DefaultLinkTTL
	}
	return ttl
}

func (a AppConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("alpha", a.Feedback.Alpha),
		slog.String("timezone", a.Schedule.Timezone),
		slog.Int("send_hour", *a.Schedule.SendHour),
		slog.String("cycle", a.Schedule.Cycle),
		slog.Int("candidate_pool", a.Selection.CandidatePool),
		slog.Int("default_sent_count", a.Selection.DefaultSentCount),
		slog.Int("concurrency", a.Selection.Concurrency),
		slog.String("base_url", a.Link.BaseURL),
		slog.String("link_ttl", a.Link.TTL),
	)
}

// App holds the CLI flag pointing at the tuning file
type App struct {
	path string
}

// Flags returns CLI flags for the app configuration
func (x *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to TOML tuning file (defaults are used when omitted)",
			Sources:     cli.EnvVars("HACKERNYOUS_CONFIG"),
			Destination: &x.path,
		},
	}
}

// Configure loads the tuning file, or returns defaults when no path is set
func (x *App) Configure() (*AppConfig, error) {
	if x.path == "" {
		return DefaultAppConfig(), nil
	}
	return LoadAppConfiguration(x.path)
}
