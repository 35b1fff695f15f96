package config

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, sqlitePath string) *Repository {
	return &Repository{
		backend:    backend,
		sqlitePath: sqlitePath,
	}
}

// NewDeliveryForTest creates a Delivery config for testing purposes
func NewDeliveryForTest(channel, smtpHost, smtpFrom, slackBotToken string) *Delivery {
	return &Delivery{
		channel:  channel,
		subject:  "test digest",
		smtpHost: smtpHost,
		smtpPort: 25,
		smtpFrom: smtpFrom,
		slack:    Slack{botToken: slackBotToken},
	}
}

// NewSecretsForTest creates a Secrets config for testing purposes
func NewSecretsForTest(linkSecret, apiToken string) *Secrets {
	return &Secrets{
		linkSecret: linkSecret,
		apiToken:   apiToken,
	}
}
