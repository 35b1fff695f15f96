package config

import (
	"log/slog"

	"github.com/secmon-lab/hackernyous/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Secrets holds the click link signing key and the profile API token
type Secrets struct {
	linkSecret string
	apiToken   string
}

func (x *Secrets) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "link-secret",
			Usage:       "HMAC key signing click links (links point straight to articles when empty)",
			Category:    "Security",
			Sources:     cli.EnvVars("HACKERNYOUS_LINK_SECRET"),
			Destination: &x.linkSecret,
		},
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Bearer token for the profile API (no authentication when empty)",
			Category:    "Security",
			Sources:     cli.EnvVars("HACKERNYOUS_API_TOKEN"),
			Destination: &x.apiToken,
		},
	}
}

func (x Secrets) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("link-secret.len", len(x.linkSecret)),
		slog.Int("api-token.len", len(x.apiToken)),
	)
}

// APIToken returns the profile API bearer token
func (x *Secrets) APIToken() string {
	return x.apiToken
}

// LinkUseCase builds click link signing from the secret and the [link]
// section of the app config. Returns nil when no secret or base URL is set.
func (x *Secrets) LinkUseCase(app *AppConfig) *usecase.LinkUseCase {
	if x.linkSecret == "" || app.Link.BaseURL == "" {
		return nil
	}
	return usecase.NewLinkUseCase([]byte(x.linkSecret), app.Link.BaseURL, app.LinkTTL())
}
