package config

import (
	"github.com/urfave/cli/v3"

	"github.com/convivia-lab/convivia/pkg/service/slacknotify"
)

// Slack holds CLI flags for the protocol notification channel.
type Slack struct {
	botToken string
}

// Flags returns CLI flags for Slack configuration
func (s *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack bot token for protocol notifications (empty disables them)",
			Category:    "Slack",
			Sources:     cli.EnvVars("CONVIVIA_SLACK_BOT_TOKEN"),
			Destination: &s.botToken,
		},
	}
}

// Configure returns a Slack notifier, or nil when no token is set.
func (s *Slack) Configure() (*slacknotify.Service, error) {
	if s.botToken == "" {
		return nil, nil
	}
	return slacknotify.New(s.botToken)
}
