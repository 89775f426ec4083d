package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/convivia-lab/convivia/pkg/service/notion"
)

// Notion holds CLI flags for the policy ingestion source.
type Notion struct {
	token string
}

// Flags returns CLI flags for Notion configuration
func (n *Notion) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "notion-token",
			Usage:       "Notion API token for policy ingestion",
			Category:    "Notion",
			Sources:     cli.EnvVars("CONVIVIA_NOTION_TOKEN"),
			Destination: &n.token,
		},
	}
}

// Configure returns a Notion service for querying policy databases.
func (n *Notion) Configure() (notion.Service, error) {
	if n.token == "" {
		return nil, goerr.New("notion-token is required")
	}
	return notion.New(n.token)
}
